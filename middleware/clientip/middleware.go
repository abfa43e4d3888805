package clientip

import (
	"context"
	"net/http"
	"net/netip"
	"strings"

	"github.com/sirupsen/logrus"

	"pw-gateway/logging"
	"pw-gateway/policy"
)

type ctxKey struct{}

type Options struct {
	// Trust nil mantém o modo legado (headers confiados).
	Trust  *policy.TrustPolicy
	Logger logrus.FieldLogger
}

// NewContext anexa o IP resolvido ao context.
func NewContext(ctx context.Context, ip netip.Addr) context.Context {
	return context.WithValue(ctx, ctxKey{}, ip)
}

// FromContext retorna ok=false quando nenhum IP foi resolvido para a requisição.
func FromContext(ctx context.Context) (netip.Addr, bool) {
	ip, ok := ctx.Value(ctxKey{}).(netip.Addr)
	if !ok || !ip.IsValid() {
		return netip.Addr{}, false
	}
	return ip, true
}

// ConnectionIP extrai o IP de r.RemoteAddr ("ip:porta" ou só "ip").
// Endereços IPv4 mapeados em IPv6 são normalizados para IPv4.
func ConnectionIP(remoteAddr string) (netip.Addr, bool) {
	s := strings.TrimSpace(remoteAddr)
	if s == "" {
		return netip.Addr{}, false
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap(), true
	}
	if ip, err := netip.ParseAddr(s); err == nil {
		return ip.Unmap(), true
	}
	return netip.Addr{}, false
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	resolver := NewResolver(opts.Trust)
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, _ := ConnectionIP(r.RemoteAddr)
			ip := resolver.Resolve(conn, r.Header)
			if !ip.IsValid() {
				log.WithField("remote_addr", r.RemoteAddr).Debug("could not determine client ip")
				next.ServeHTTP(w, r)
				return
			}

			if ip != conn {
				log.WithFields(logrus.Fields{
					"connection_ip": conn.String(),
					"client_ip":     ip.String(),
				}).Debug("client ip resolved from proxy headers")
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), ip)))
		})
	}
}
