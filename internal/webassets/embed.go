// Package webassets embeds the exported frontend and the fallback pages
// served while no export is present.
package webassets

import (
	"embed"
	"io/fs"

	"github.com/addynoven/portfolio-web/internal/xerrors"
)

// site/ is filled by the frontend export before go build. The committed
// README keeps the directory embeddable when it is empty.
//
//go:embed fallback site
var embedded embed.FS

const siteIndex = "index.html"

// FallbackFS holds maintenance.html and 404.html. It panics only if the
// embed directive and the directory layout disagree, which is a build bug.
func FallbackFS() fs.FS {
	sub, err := fs.Sub(embedded, "fallback")
	if err != nil {
		panic(xerrors.Wrap(err, "webassets: fallback subtree"))
	}
	return sub
}

// SiteFS returns the exported site, or false when the build shipped without
// one and the server should stay in maintenance mode.
func SiteFS() (fs.FS, bool) {
	sub, err := fs.Sub(embedded, "site")
	if err != nil {
		return nil, false
	}
	if fi, err := fs.Stat(sub, siteIndex); err != nil || fi.IsDir() {
		return nil, false
	}
	return sub, true
}
