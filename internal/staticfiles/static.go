// Package staticfiles serves the external static handler that fronts
// /static/ requests, sibling to the proxy pipeline rather than part of it.
package staticfiles

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const prefix = "/static/"

// Handler serves files under root for requests whose path begins with
// /static/. A path containing ".." or resolving outside root is rejected
// with 400 before the filesystem is ever touched. Directories resolve to
// their index.html.
func Handler(root string) http.Handler {
	fs := http.FileServer(http.Dir(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, prefix)

		if strings.Contains(rel, "..") || strings.HasPrefix(rel, "/") {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}

		full := filepath.Join(root, rel)
		if info, err := os.Stat(full); err == nil && info.IsDir() {
			if _, err := os.Stat(filepath.Join(full, "index.html")); err != nil {
				http.NotFound(w, r)
				return
			}
		}

		http.StripPrefix(prefix, fs).ServeHTTP(w, r)
	})
}
