// Package limits resolve os limites efetivos de tamanho por IP de cliente e
// calcula o teto global de corpo HTTP.
//
// A whitelist é percorrida na ordem declarada e a primeira entrada que casar
// vence. Isso NÃO é longest-prefix-match: um /16 listado antes de um host
// específico mantém os valores do /16 para aquele host.
package limits

import (
	"math"
	"net/netip"

	"github.com/sirupsen/logrus"

	"pw-gateway/logging"
	"pw-gateway/policy"
)

// Resolver é imutável após NewResolver e seguro para uso concorrente.
type Resolver struct {
	enabled   bool
	whitelist []policy.RuleEntry
	patterns  policy.PatternSet
	defaults  policy.Defaults
	fallback  policy.EffectiveLimits
	log       logrus.FieldLogger
}

type Option func(*Resolver)

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

func NewResolver(p policy.LimitsPolicy, opts ...Option) *Resolver {
	raw := make([]string, len(p.Whitelist))
	for i, e := range p.Whitelist {
		raw[i] = e.Pattern
	}

	r := &Resolver{
		enabled:   p.Enabled,
		whitelist: append([]policy.RuleEntry(nil), p.Whitelist...),
		patterns:  policy.CompilePatterns(raw),
		defaults:  p.Defaults,
		fallback:  p.Defaults.Effective(),
		log:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve nunca falha: IP inválido ou política desabilitada caem nos defaults.
func (r *Resolver) Resolve(clientIP string) policy.EffectiveLimits {
	if !r.enabled {
		r.log.WithField("client_ip", clientIP).Debug("ip limits disabled, using default limits")
		return r.fallback
	}

	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		r.log.WithField("client_ip", clientIP).WithError(err).Debug("failed to parse client ip, using default limits")
		return r.fallback
	}
	return r.ResolveAddr(addr)
}

func (r *Resolver) ResolveAddr(addr netip.Addr) policy.EffectiveLimits {
	if !r.enabled || !addr.IsValid() {
		return r.fallback
	}

	i, ok := r.patterns.Match(addr)
	if !ok {
		r.log.WithField("client_ip", addr.String()).Debug("no ip limit rule matched, using default limits")
		return r.fallback
	}

	e := r.whitelist[i]
	lim := e.Apply(r.defaults)
	r.log.WithFields(logrus.Fields{
		"client_ip":                    addr.String(),
		"rule":                         e.Pattern,
		"message_max_length":           lim.MessageMaxLength,
		"file_max_size":                lim.FileMaxSize,
		"encrypted_message_max_length": lim.EncryptedMessageMaxLength,
	}).Info("applied custom ip limits")
	return lim
}

// Whitelisted informa se o IP casa com alguma entrada de uma whitelist
// habilitada. Usado pelo bypass do rate limit, com a mesma regra de Resolve.
func (r *Resolver) Whitelisted(addr netip.Addr) bool {
	if !r.enabled {
		return false
	}
	return r.patterns.Contains(addr)
}

func (r *Resolver) Enabled() bool { return r.enabled }

func (r *Resolver) Defaults() policy.EffectiveLimits { return r.fallback }

// MaxBodyLimit é o maior EncryptedMessageMaxLength alcançável por qualquer cliente.
func (r *Resolver) MaxBodyLimit() uint64 {
	ceiling := r.fallback.EncryptedMessageMaxLength
	if !r.enabled {
		return ceiling
	}
	for _, e := range r.whitelist {
		if v := e.Apply(r.defaults).EncryptedMessageMaxLength; v > ceiling {
			ceiling = v
		}
	}
	return ceiling
}

// ComputeMaxBodyLimit dimensiona o teto único de leitura de corpo do processo.
// Os limites por requisição só são conhecidos depois dos headers, então o
// transporte precisa aceitar o maior deles.
func ComputeMaxBodyLimit(p policy.LimitsPolicy) uint64 {
	return NewResolver(p).MaxBodyLimit()
}

// BodyLimit adiciona 5% de margem operacional (arredondando para cima) e
// satura em math.MaxInt em vez de estourar.
func BodyLimit(limit uint64) int {
	margin := limit / 20
	if limit%20 != 0 {
		margin++
	}
	total := limit + margin
	if total < limit || total > math.MaxInt {
		return math.MaxInt
	}
	return int(total)
}
