package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// lookupFunc tem a assinatura de os.LookupEnv; os testes injetam um mapa.
type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("PW_LISTEN", &c.Listen)
	e.str("PW_LOG_LEVEL", &c.LogLevel)
	e.str("PW_LOG_TARGET", &c.LogTarget)
	e.str("PW_REDIS_URL", &c.RedisURL)

	if v, ok := e.unsigned("PW_MESSAGE_MAX_LENGTH", 16); ok {
		c.MessageMaxLength = uint16(v)
	}
	e.boolean("PW_FILE_UPLOAD_ENABLED", &c.FileUploadEnabled)
	if v, ok := e.unsigned("PW_FILE_MAX_SIZE", 64); ok {
		c.FileMaxSize = v
	}
	if v, ok := e.unsigned("PW_ENCRYPTED_MESSAGE_MAX_LENGTH", 64); ok {
		c.EncryptedMessageMaxLength = &v
	}

	if v, ok := e.integer("PW_CONCURRENCY_MAX"); ok {
		c.ConcurrencyMax = v
	}
	e.duration("PW_CONCURRENCY_TIMEOUT", &c.ConcurrencyTimeout)

	e.boolean("PW_RATE_LIMIT_ENABLED", &c.RateLimit.Enabled)
	if v, ok := e.unsigned("PW_RATE_LIMIT_REQUESTS_PER_MINUTE", 32); ok {
		c.RateLimit.RequestsPerMinute = uint32(v)
	}
	if v, ok := e.unsigned("PW_RATE_LIMIT_BURST_SIZE", 32); ok {
		c.RateLimit.BurstSize = uint32(v)
	}
	e.duration("PW_RATE_LIMIT_IDLE_TTL", &c.RateLimit.IdleTTL)
	if v, ok := e.integer("PW_RATE_LIMIT_MAX_KEYS"); ok {
		c.RateLimit.MaxKeys = v
	}
	e.boolean("PW_RATE_LIMIT_ADD_HEADERS", &c.RateLimit.AddHeaders)
	e.boolean("PW_RATE_LIMIT_STATS_REDIS", &c.RateLimit.StatsRedis)
	e.duration("PW_RATE_LIMIT_STATS_TTL", &c.RateLimit.StatsTTL)
	e.boolean("PW_RATE_LIMIT_STATS_TRACK_KEYS", &c.RateLimit.StatsTrackKeys)

	return e.err
}

// envReader guarda o primeiro erro; depois dele as leituras viram no-op.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(k string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(k)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) fail(k string, err error) {
	e.err = fmt.Errorf("invalid %s: %w", k, err)
}

func (e *envReader) str(k string, dst *string) {
	if v, ok := e.get(k); ok {
		*dst = v
	}
}

func (e *envReader) unsigned(k string, bitSize int) (uint64, bool) {
	v, ok := e.get(k)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, bitSize)
	if err != nil {
		e.fail(k, err)
		return 0, false
	}
	return n, true
}

func (e *envReader) integer(k string) (int, bool) {
	v, ok := e.get(k)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(k, err)
		return 0, false
	}
	return n, true
}

func (e *envReader) boolean(k string, dst *bool) {
	v, ok := e.get(k)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(k, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(k string, dst *time.Duration) {
	v, ok := e.get(k)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(k, err)
		return
	}
	*dst = d
}
