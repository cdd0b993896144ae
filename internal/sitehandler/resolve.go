package sitehandler

import (
	"io/fs"
	"path"
	"strings"

	"github.com/addynoven/portfolio-web/internal/pathutil"
)

const htmlExt = ".html"

// resolvePath maps a request path onto a statically exported site.
//
// Exported pages live either at <route>.html or <route>/index.html, so a
// request for /projects tries projects.html before falling back to a
// redirect to /projects/ when only the directory index exists. A trailing
// slash on a page that was exported flat redirects back to the slashless
// form. Exactly one of file and redirectTo is set when ok is true.
func resolvePath(urlPath string, site fs.FS) (file, redirectTo string, ok bool) {
	clean, valid := pathutil.CleanURLPath(urlPath)
	if !valid {
		return "", "", false
	}
	rel := strings.TrimPrefix(clean, "/")

	switch {
	case clean == "/":
		return found(site, "index.html")

	case strings.HasSuffix(clean, "/"):
		dir := strings.TrimSuffix(rel, "/")
		if existsFile(site, dir+"/index.html") {
			return dir + "/index.html", "", true
		}
		if existsFile(site, dir+htmlExt) {
			return "", "/" + dir, true
		}
		return "", "", false

	case path.Ext(clean) != "":
		return found(site, rel)

	case existsFile(site, rel+htmlExt):
		return rel + htmlExt, "", true

	case existsFile(site, rel+"/index.html"):
		return "", clean + "/", true
	}
	return "", "", false
}

func found(site fs.FS, name string) (string, string, bool) {
	if existsFile(site, name) {
		return name, "", true
	}
	return "", "", false
}

func existsFile(fsys fs.FS, name string) bool {
	if fsys == nil || name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
