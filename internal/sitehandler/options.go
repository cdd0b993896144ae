package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/addynoven/portfolio-web/internal/log"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

type Options struct {
	Logger log.Logger

	// Site is the exported frontend. nil, or a tree without IndexFile, puts
	// the handler in maintenance mode.
	Site fs.FS

	// FallbackFS holds the maintenance page and an optional generic 404.
	FallbackFS fs.FS

	IndexFile       string // default: "index.html"
	MaintenanceFile string // default: "maintenance.html", read from FallbackFS
	Fallback404File string // default: "404.html", read from FallbackFS
	Site404File     string // default: "404.html", read from Site

	// HashedPrefix is the directory the exporter writes content-hashed
	// build output to. Only files under it get AssetCacheControl.
	HashedPrefix string // default: "_next/static/"

	// Cache policies applied by file name.
	HTMLCacheControl          string // default: "no-cache"
	AssetCacheControl         string // default: "public, max-age=31536000, immutable"
	FontCacheControl          string // default: "public, max-age=2592000"
	OtherCacheControl         string // default: "public, max-age=3600"
	ServiceWorkerCacheControl string // default: "public, max-age=0, must-revalidate"
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.IndexFile == "" {
		o.IndexFile = "index.html"
	}
	if o.MaintenanceFile == "" {
		o.MaintenanceFile = "maintenance.html"
	}
	if o.Fallback404File == "" {
		o.Fallback404File = "404.html"
	}
	if o.Site404File == "" {
		o.Site404File = "404.html"
	}
	if o.HashedPrefix == "" {
		o.HashedPrefix = "_next/static/"
	}
	if o.HTMLCacheControl == "" {
		o.HTMLCacheControl = "no-cache"
	}
	if o.AssetCacheControl == "" {
		o.AssetCacheControl = "public, max-age=31536000, immutable"
	}
	if o.FontCacheControl == "" {
		o.FontCacheControl = "public, max-age=2592000"
	}
	if o.OtherCacheControl == "" {
		o.OtherCacheControl = "public, max-age=3600"
	}
	if o.ServiceWorkerCacheControl == "" {
		o.ServiceWorkerCacheControl = "public, max-age=0, must-revalidate"
	}
}

func (o *Options) validate() error {
	if o.FallbackFS == nil {
		return fmt.Errorf("%w: FallbackFS is nil", ErrInvalidOptions)
	}
	// fail at boot if the binary was built without its maintenance page
	if _, err := fs.Stat(o.FallbackFS, o.MaintenanceFile); err != nil {
		return fmt.Errorf("%w: missing %q in fallback FS: %v", ErrInvalidOptions, o.MaintenanceFile, err)
	}
	return nil
}
