package clientip

import (
	"net/http"
	"net/netip"
	"strings"

	"pw-gateway/policy"
)

const (
	HeaderForwardedFor = "X-Forwarded-For"
	HeaderRealIP       = "X-Real-IP"

	// maxHeaderIPLen é o maior texto possível de um IPv6 (com IPv4 embutido).
	maxHeaderIPLen = 45
)

// Resolver guarda a política de confiança já compilada. Imutável e seguro
// para uso concorrente.
type Resolver struct {
	legacy  bool
	proxies policy.PatternSet
}

// NewResolver compila a lista de trusted proxies uma única vez.
func NewResolver(trust *policy.TrustPolicy) *Resolver {
	if trust == nil || !trust.Enabled {
		return &Resolver{legacy: true}
	}
	return &Resolver{proxies: policy.CompilePatterns(trust.TrustedProxies)}
}

// Resolve nunca falha. O retorno pode ser um netip.Addr inválido apenas se
// conn for inválido e nenhum header puder ser usado.
func (r *Resolver) Resolve(conn netip.Addr, h http.Header) netip.Addr {
	if !r.legacy {
		if len(r.proxies) == 0 || !r.proxies.Contains(conn) {
			return conn
		}
	}
	if ip, ok := forwardedFor(h); ok {
		return ip
	}
	if ip, ok := parseHeaderIP(h.Get(HeaderRealIP)); ok {
		return ip
	}
	return conn
}

// Resolve é a forma sem pré-compilação, útil em testes e chamadas pontuais.
func Resolve(conn netip.Addr, h http.Header, trust *policy.TrustPolicy) netip.Addr {
	return NewResolver(trust).Resolve(conn, h)
}

// forwardedFor considera apenas o primeiro token. strings.Cut evita dividir
// listas longas inteiras.
func forwardedFor(h http.Header) (netip.Addr, bool) {
	v := h.Get(HeaderForwardedFor)
	if v == "" {
		return netip.Addr{}, false
	}
	first, _, _ := strings.Cut(v, ",")
	return parseHeaderIP(first)
}

func parseHeaderIP(v string) (netip.Addr, bool) {
	s := strings.TrimSpace(v)
	if s == "" || len(s) > maxHeaderIPLen {
		return netip.Addr{}, false
	}
	ip, err := netip.ParseAddr(s)
	if err != nil || ip.Zone() != "" {
		return netip.Addr{}, false
	}
	return ip, true
}
