package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type businessKey struct{}

// WithBusinessSlug stores the public business slug in context.
func WithBusinessSlug(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, businessKey{}, slug)
}

// BusinessSlugFromContext returns the slug set by BusinessSlug. Empty slugs
// report false.
func BusinessSlugFromContext(ctx context.Context) (string, bool) {
	slug, ok := ctx.Value(businessKey{}).(string)
	return slug, ok && slug != ""
}

// BusinessSlug copies the {slug} route parameter onto the request context.
func BusinessSlug(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "slug")))
		if slug == "" {
			writeProblem(w, http.StatusNotFound, "not_found", "Not found", "Unknown business.")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithBusinessSlug(r.Context(), slug)))
	})
}
