package middleware

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// CORS allows browser widgets on the given origins. An empty list allows any
// origin, which suits local development only.
func CORS(origins []string) mux.MiddlewareFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return mux.MiddlewareFunc(handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Requested-With"}),
		handlers.ExposedHeaders([]string{"Content-Disposition", "X-Export-Id"}),
		handlers.MaxAge(600),
	))
}
