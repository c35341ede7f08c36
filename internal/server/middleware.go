// Package server implements the local preview server: the built site, a small
// JSON API over the search index, live reload events and metrics.
package server

import "net/http"

// NoCache marks responses as uncacheable so a reloaded page always shows the
// latest build.
func NoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		next.ServeHTTP(w, r)
	})
}
