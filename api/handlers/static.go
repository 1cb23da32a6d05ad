package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// spaHandler serves the built front end, falling back to index.html for client-side routes
type spaHandler struct {
	dir string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := filepath.Join(h.dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(name); err != nil || info.IsDir() || !strings.HasPrefix(name, filepath.Clean(h.dir)) {
		http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
		return
	}
	http.FileServer(http.Dir(h.dir)).ServeHTTP(w, r)
}
