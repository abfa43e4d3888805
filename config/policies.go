package config

import (
	"fmt"
	"strings"

	"pw-gateway/policy"
)

// Trust retorna nil quando a seção ip-limits não existe.
func (c Config) Trust() *policy.TrustPolicy {
	if c.IPLimits == nil {
		return nil
	}
	return &policy.TrustPolicy{
		Enabled:        c.IPLimits.Enabled,
		TrustedProxies: append([]string(nil), c.IPLimits.TrustedProxies...),
	}
}

func (c Config) Defaults() policy.Defaults {
	d := policy.Defaults{
		MessageMaxLength: c.MessageMaxLength,
		FileMaxSize:      c.FileMaxSize,
	}
	if c.EncryptedMessageMaxLength != nil {
		v := *c.EncryptedMessageMaxLength
		d.EncryptedMessageMaxLength = &v
	}
	return d
}

func (c Config) Limits() policy.LimitsPolicy {
	p := policy.LimitsPolicy{Defaults: c.Defaults()}
	if c.IPLimits == nil {
		return p
	}
	p.Enabled = c.IPLimits.Enabled
	p.Whitelist = make([]policy.RuleEntry, 0, len(c.IPLimits.Whitelist))
	for _, w := range c.IPLimits.Whitelist {
		p.Whitelist = append(p.Whitelist, policy.RuleEntry{
			Pattern:          w.IP,
			MessageMaxLength: w.MessageMaxLength,
			FileMaxSize:      w.FileMaxSize,
		})
	}
	return p
}

func (c Config) RateLimitPolicy() policy.RateLimitPolicy {
	return policy.RateLimitPolicy{
		Enabled:           c.RateLimit.Enabled,
		RequestsPerMinute: c.RateLimit.RequestsPerMinute,
		BurstSize:         c.RateLimit.BurstSize,
	}
}

// Validate roda todas as verificações e devolve um único
// *policy.ValidationError com todas as violações encontradas.
func (c Config) Validate() error {
	var vs []policy.Violation
	vs = append(vs, policy.ValidateDefaults(c.Defaults())...)
	if c.IPLimits != nil {
		vs = append(vs, policy.ValidateTrust(*c.Trust())...)
		vs = append(vs, policy.Validate(c.Limits())...)
	}
	vs = append(vs, policy.ValidateRateLimit(c.RateLimitPolicy())...)
	vs = append(vs, c.validateServer()...)

	if len(vs) == 0 {
		return nil
	}
	return &policy.ValidationError{Violations: vs}
}

func (c Config) validateServer() []policy.Violation {
	var vs []policy.Violation
	bad := func(field, detail string) {
		vs = append(vs, policy.Violation{Section: "server", Index: -1, Detail: fmt.Sprintf("%s %s", field, detail)})
	}

	if strings.TrimSpace(c.Listen) == "" {
		bad("listen", "cannot be empty")
	}
	switch c.LogTarget {
	case "stdout", "file":
	default:
		bad("log-target", fmt.Sprintf("must be 'stdout' or 'file', got '%s'", c.LogTarget))
	}
	if c.ConcurrencyMax < 0 {
		bad("concurrency-max", "must be >= 0")
	}
	if c.ConcurrencyTimeout < 0 {
		bad("concurrency-timeout", "must be >= 0")
	}
	if c.RateLimit.MaxKeys < 0 {
		bad("rate-limit max-keys", "must be >= 0")
	}
	if c.RateLimit.IdleTTL < 0 {
		bad("rate-limit idle-ttl", "must be >= 0")
	}
	if c.RateLimit.StatsTTL < 0 {
		bad("rate-limit stats-ttl", "must be >= 0")
	}
	if c.RateLimit.StatsRedis && strings.TrimSpace(c.RedisURL) == "" {
		bad("redis-url", "is required when rate-limit stats-redis is enabled")
	}
	return vs
}
