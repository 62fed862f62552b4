package i18n

import "net/http"

// Middleware injects a catalog into every request context. The "lang" query
// parameter wins over the Accept-Language header; fallback is used when
// neither names a supported language.
func Middleware(b *Bundle, fallback string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := b.Catalog(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"), fallback)
			next.ServeHTTP(w, r.WithContext(WithCatalog(r.Context(), c)))
		})
	}
}
