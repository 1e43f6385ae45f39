package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/rpattn/aquamind/internal/entityloader"
)

// DataLoaderMiddleware attaches a fresh set of entity loaders to each
// request context.
func DataLoaderMiddleware(lister entityloader.Lister, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loaders := entityloader.NewLoaders(lister, logger)
			ctx := entityloader.WithLoaders(r.Context(), loaders)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
