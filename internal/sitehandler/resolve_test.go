package sitehandler

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

// exportFS mirrors the layout of a static export: flat route files, a few
// directory indexes and hashed assets.
func exportFS() fstest.MapFS {
	file := func(s string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(s)} }
	return fstest.MapFS{
		"index.html":                      file("home"),
		"projects.html":                   file("projects"),
		"blog/index.html":                 file("blog"),
		"blog/first-post.html":            file("post"),
		"_next/static/chunks/app-1a2b.js": file("js"),
		"_next/static/css/9f8e.css":       file("css"),
		"images/avatar.webp":              file("img"),
		"resume.pdf":                      file("pdf"),
		"sw.js":                           file("sw"),
		"robots.txt":                      file("robots"),
		".well-known/security.txt":        file("sec"),
		"404.html":                        file("404"),
	}
}

func TestResolvePath(t *testing.T) {
	site := exportFS()

	tests := []struct {
		name      string
		path      string
		wantFile  string
		wantRedir string
		wantOK    bool
	}{
		{name: "root", path: "/", wantFile: "index.html", wantOK: true},
		{name: "empty is root", path: "", wantFile: "index.html", wantOK: true},

		{name: "flat route", path: "/projects", wantFile: "projects.html", wantOK: true},
		{name: "nested flat route", path: "/blog/first-post", wantFile: "blog/first-post.html", wantOK: true},
		{name: "flat route with slash redirects", path: "/projects/", wantRedir: "/projects", wantOK: true},
		{name: "directory index", path: "/blog/", wantFile: "blog/index.html", wantOK: true},
		{name: "directory without slash redirects", path: "/blog", wantRedir: "/blog/", wantOK: true},
		{name: "explicit html", path: "/projects.html", wantFile: "projects.html", wantOK: true},

		{name: "hashed chunk", path: "/_next/static/chunks/app-1a2b.js", wantFile: "_next/static/chunks/app-1a2b.js", wantOK: true},
		{name: "stylesheet", path: "/_next/static/css/9f8e.css", wantFile: "_next/static/css/9f8e.css", wantOK: true},
		{name: "image", path: "/images/avatar.webp", wantFile: "images/avatar.webp", wantOK: true},
		{name: "pdf", path: "/resume.pdf", wantFile: "resume.pdf", wantOK: true},
		{name: "service worker", path: "/sw.js", wantFile: "sw.js", wantOK: true},
		{name: "well-known", path: "/.well-known/security.txt", wantFile: ".well-known/security.txt", wantOK: true},
		{name: "no leading slash", path: "robots.txt", wantFile: "robots.txt", wantOK: true},
		{name: "double slashes", path: "//images//avatar.webp", wantFile: "images/avatar.webp", wantOK: true},

		{name: "missing route", path: "/contact", wantOK: false},
		{name: "missing directory", path: "/nope/", wantOK: false},
		{name: "missing asset", path: "/images/nope.png", wantOK: false},
		{name: "directory is not a file", path: "/_next/static", wantOK: false},

		{name: "traversal", path: "/../etc/passwd", wantOK: false},
		{name: "traversal in middle", path: "/blog/../../etc/passwd", wantOK: false},
		{name: "dot segment", path: "/./index.html", wantOK: false},
		{name: "nul byte", path: "/index.html\x00.png", wantOK: false},
		{name: "backslash", path: "/blog\\index.html", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, redir, ok := resolvePath(tt.path, site)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (file=%q redir=%q)", ok, tt.wantOK, file, redir)
			}
			if file != tt.wantFile {
				t.Errorf("file = %q, want %q", file, tt.wantFile)
			}
			if redir != tt.wantRedir {
				t.Errorf("redir = %q, want %q", redir, tt.wantRedir)
			}
		})
	}
}

func TestResolvePath_EmptyFS(t *testing.T) {
	for _, p := range []string{"/", "/index.html", "/blog/", "/projects"} {
		if file, redir, ok := resolvePath(p, fstest.MapFS{}); ok {
			t.Errorf("resolvePath(%q) on empty fs = %q, %q, true", p, file, redir)
		}
	}
}

func TestExistsFile(t *testing.T) {
	site := exportFS()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"file", "index.html", true},
		{"nested", "_next/static/css/9f8e.css", true},
		{"missing", "nope.html", false},
		{"empty", "", false},
		{"directory", "blog", false},
		{"invalid", "/index.html", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := existsFile(site, tt.path); got != tt.want {
				t.Errorf("existsFile(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}

	if existsFile(nil, "index.html") {
		t.Error("existsFile(nil fs) = true")
	}
}

func FuzzResolvePath(f *testing.F) {
	for _, s := range []string{
		"../etc/passwd", "..\\..\\windows", "foo/../../etc/shadow",
		"\x00", "\\", "..", ".", "./", "../", "/projects", "/blog",
		strings.Repeat("../", 50) + "etc/passwd",
	} {
		f.Add(s)
	}
	site := exportFS()

	f.Fuzz(func(t *testing.T, input string) {
		file, redir, ok := resolvePath(input, site)
		if !ok {
			return
		}
		if (file == "") == (redir == "") {
			t.Fatalf("resolvePath(%q) = file %q redir %q, want exactly one", input, file, redir)
		}
		if redir != "" {
			if !strings.HasPrefix(redir, "/") || strings.HasPrefix(redir, "//") {
				t.Errorf("redirect %q is not a local absolute path", redir)
			}
			return
		}
		if !fs.ValidPath(file) || strings.Contains(file, "..") {
			t.Errorf("resolvePath(%q) returned unsafe file %q", input, file)
		}
		if _, err := fs.Stat(site, file); err != nil {
			t.Errorf("resolvePath(%q) returned missing file %q", input, file)
		}
	})
}
