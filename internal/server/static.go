package server

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// staticHandler serves the simulation dashboard from a directory. "/" maps
// to index.html; anything that is not a regular file is a 404 (no listings).
type staticHandler struct {
	fsys fs.FS
}

func newStaticHandler(fsys fs.FS) http.Handler {
	return &staticHandler{fsys: fsys}
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Clean the path to prevent directory traversal.
	urlPath := path.Clean("/" + r.URL.Path)
	if urlPath == "/" {
		urlPath = "/index.html"
	}
	name := strings.TrimPrefix(urlPath, "/")

	info, err := fs.Stat(h.fsys, name)
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}

	setCacheHeaders(w, urlPath)
	http.ServeFileFS(w, r, h.fsys, name)
}

// setCacheHeaders sets cache-control headers based on the file path.
// HTML is always revalidated so a redeployed dashboard shows up on reload.
func setCacheHeaders(w http.ResponseWriter, urlPath string) {
	if strings.HasSuffix(urlPath, ".html") {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
}
