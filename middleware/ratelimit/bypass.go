package ratelimit

import (
	"context"
	"net/http"
	"net/netip"

	"pw-gateway/middleware/clientip"
)

type bypassKey struct{}

// BypassMiddleware marca a requisição quando o IP resolvido casa com match.
// No gateway match é limits.Resolver.Whitelisted, então a isenção usa
// exatamente as mesmas regras da resolução de limites.
func BypassMiddleware(match func(netip.Addr) bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if match == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, ok := clientip.FromContext(r.Context())
			if ok && match(ip) {
				r = r.WithContext(context.WithValue(r.Context(), bypassKey{}, true))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Bypassed informa se a requisição está isenta do rate limit.
func Bypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}
