package policy

import (
	"net/netip"
	"strings"
)

// Pattern é um IP único ou um bloco CIDR já parseado.
//
// Um Pattern inválido (ok=false em ParsePattern) nunca casa com nada; a
// validação no startup garante que isso não aconteça em produção.
type Pattern struct {
	raw    string
	addr   netip.Addr
	prefix netip.Prefix
}

// ParsePattern aceita "192.168.1.10", "2001:db8::1", "10.0.0.0/8" etc.
// Espaços nas bordas são ignorados.
func ParsePattern(s string) (Pattern, bool) {
	raw := strings.TrimSpace(s)
	p := Pattern{raw: raw}
	if raw == "" {
		return p, false
	}
	if addr, err := netip.ParseAddr(raw); err == nil {
		p.addr = addr
		return p, true
	}
	if pfx, err := netip.ParsePrefix(raw); err == nil {
		p.prefix = pfx
		return p, true
	}
	return p, false
}

func (p Pattern) String() string { return p.raw }

// Matches testa primeiro a string exata, depois igualdade de endereço e por
// fim contenção no CIDR (inclusiva: rede e broadcast casam).
func (p Pattern) Matches(ip netip.Addr, ipStr string) bool {
	if ipStr != "" && ipStr == p.raw {
		return true
	}
	if !ip.IsValid() {
		return false
	}
	if p.addr.IsValid() {
		return p.addr == ip
	}
	if p.prefix.IsValid() {
		return p.prefix.Contains(ip)
	}
	return false
}

// PatternSet é uma lista ordenada de padrões com semântica first-match.
type PatternSet []Pattern

// CompilePatterns preserva a ordem e a posição de cada entrada, inclusive
// das inválidas, para que o índice retornado por Match aponte para a entrada
// original da configuração.
func CompilePatterns(raw []string) PatternSet {
	set := make(PatternSet, 0, len(raw))
	for _, s := range raw {
		p, _ := ParsePattern(s)
		set = append(set, p)
	}
	return set
}

// Match retorna o índice da primeira entrada que casa com ip.
func (s PatternSet) Match(ip netip.Addr) (int, bool) {
	str := ""
	if ip.IsValid() {
		str = ip.String()
	}
	for i, p := range s {
		if p.Matches(ip, str) {
			return i, true
		}
	}
	return -1, false
}

func (s PatternSet) Contains(ip netip.Addr) bool {
	_, ok := s.Match(ip)
	return ok
}
