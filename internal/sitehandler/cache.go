package sitehandler

import (
	"path"
	"strings"
)

// cacheControlForFile picks the Cache-Control policy for a resolved file.
// Long-lived caching is reserved for content-hashed build output, since
// anything else keeps its URL across deploys.
func cacheControlForFile(name string, o *Options) string {
	if path.Base(name) == "sw.js" {
		return o.ServiceWorkerCacheControl
	}

	ext := strings.ToLower(path.Ext(name))
	switch {
	case ext == ".html" || ext == "":
		return o.HTMLCacheControl
	case o.HashedPrefix != "" && strings.HasPrefix(name, o.HashedPrefix):
		return o.AssetCacheControl
	}

	switch ext {
	case ".woff", ".woff2", ".ttf", ".otf", ".eot":
		return o.FontCacheControl
	default:
		return o.OtherCacheControl
	}
}
