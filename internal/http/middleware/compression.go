package middleware

import (
	"net/http"
	"strings"
)

// SkipCompressionForMedia wraps a compression middleware handler to
// skip compression on media download endpoints. Encoded video and zip
// payloads are already compressed, and the compression writer's
// buffering interferes with the per-chunk flushing those endpoints
// rely on.
func SkipCompressionForMedia(compressionHandler func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressedHandler := compressionHandler(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/segment") || strings.HasSuffix(r.URL.Path, "/segments") {
				next.ServeHTTP(w, r)
				return
			}

			compressedHandler.ServeHTTP(w, r)
		})
	}
}
