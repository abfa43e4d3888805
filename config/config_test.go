package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pw-gateway/policy"
)

const fullDoc = `
listen: 127.0.0.1:9090
log-level: debug
log-target: file
message-max-length: 2048
file-upload-enabled: false
file-max-size: 20971520
encrypted-message-max-length: 30000000
redis-url: redis://redis:6379/1
concurrency-max: 50
concurrency-timeout: 250ms
ip-limits:
  enabled: true
  trusted-proxies: ["10.0.0.1", "172.16.0.0/12"]
  whitelist:
    - ip: 192.168.1.100
      message-max-length: 8192
      file-max-size: 104857600
    - ip: 10.0.0.0/8
      message-max-length: 4096
rate-limit:
  enabled: true
  requests-per-minute: 120
  burst-size: 20
  idle-ttl: 5m
  max-keys: 1000
  stats-redis: true
  stats-track-keys: true
`

func env(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParse_FullDocument(t *testing.T) {
	cfg, err := Parse([]byte(fullDoc))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "file", cfg.LogTarget)
	assert.Equal(t, uint16(2048), cfg.MessageMaxLength)
	assert.False(t, cfg.FileUploadEnabled)
	assert.Equal(t, uint64(20971520), cfg.FileMaxSize)
	require.NotNil(t, cfg.EncryptedMessageMaxLength)
	assert.Equal(t, uint64(30000000), *cfg.EncryptedMessageMaxLength)
	assert.Equal(t, 250*time.Millisecond, cfg.ConcurrencyTimeout)

	require.NotNil(t, cfg.IPLimits)
	assert.Equal(t, []string{"10.0.0.1", "172.16.0.0/12"}, cfg.IPLimits.TrustedProxies)
	require.Len(t, cfg.IPLimits.Whitelist, 2)
	assert.Nil(t, cfg.IPLimits.Whitelist[1].FileMaxSize)

	assert.Equal(t, RateLimit{
		Enabled: true, RequestsPerMinute: 120, BurstSize: 20,
		IdleTTL: 5 * time.Minute, MaxKeys: 1000, StatsRedis: true,
		StatsTTL: 24 * time.Hour, StatsTrackKeys: true,
	}, cfg.RateLimit)

	assert.NoError(t, cfg.Validate())
}

func TestParse_EmptyDocumentUsesDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Nil(t, cfg.Trust(), "absent ip-limits keeps legacy header trust")
	assert.NoError(t, cfg.Validate())
}

func TestParse_PartialRateLimitKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("rate-limit:\n  enabled: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, uint32(60), cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, uint32(10), cfg.RateLimit.BurstSize)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("listen: :8080\nmessage-max-lenght: 10\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("ip-limits:\n  enabled: true\n  whitelist:\n    - ip: 10.0.0.1\n      bogus: 1\n"))
	assert.Error(t, err)
}

func TestParse_RejectsOutOfRangeMessageLength(t *testing.T) {
	_, err := Parse([]byte("message-max-length: 65536\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("message-max-length: -1\n"))
	assert.Error(t, err)
}

func TestApplyEnv_Overrides(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"PW_LISTEN":                         "0.0.0.0:7000",
		"PW_LOG_LEVEL":                      "warn",
		"PW_MESSAGE_MAX_LENGTH":             "4096",
		"PW_FILE_UPLOAD_ENABLED":            "false",
		"PW_FILE_MAX_SIZE":                  "1048576",
		"PW_ENCRYPTED_MESSAGE_MAX_LENGTH":   "2000000",
		"PW_REDIS_URL":                      "redis://other:6379/2",
		"PW_CONCURRENCY_MAX":                "5",
		"PW_CONCURRENCY_TIMEOUT":            "1s",
		"PW_RATE_LIMIT_ENABLED":             "true",
		"PW_RATE_LIMIT_REQUESTS_PER_MINUTE": "30",
		"PW_RATE_LIMIT_BURST_SIZE":          "3",
		"PW_LOG_TARGET":                     "  ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7000", cfg.Listen)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "stdout", cfg.LogTarget, "blank override is ignored")
	assert.Equal(t, uint16(4096), cfg.MessageMaxLength)
	assert.False(t, cfg.FileUploadEnabled)
	assert.Equal(t, uint64(1048576), cfg.FileMaxSize)
	assert.Equal(t, uint64(2000000), *cfg.EncryptedMessageMaxLength)
	assert.Equal(t, "redis://other:6379/2", cfg.RedisURL)
	assert.Equal(t, 5, cfg.ConcurrencyMax)
	assert.Equal(t, time.Second, cfg.ConcurrencyTimeout)
	assert.Equal(t, policy.RateLimitPolicy{Enabled: true, RequestsPerMinute: 30, BurstSize: 3}, cfg.RateLimitPolicy())
}

func TestApplyEnv_RateLimitTable(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"PW_RATE_LIMIT_IDLE_TTL":         "2m",
		"PW_RATE_LIMIT_MAX_KEYS":         "50",
		"PW_RATE_LIMIT_ADD_HEADERS":      "true",
		"PW_RATE_LIMIT_STATS_REDIS":      "1",
		"PW_RATE_LIMIT_STATS_TTL":        "1h",
		"PW_RATE_LIMIT_STATS_TRACK_KEYS": "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.RateLimit.IdleTTL)
	assert.Equal(t, 50, cfg.RateLimit.MaxKeys)
	assert.True(t, cfg.RateLimit.AddHeaders)
	assert.True(t, cfg.RateLimit.StatsRedis)
	assert.Equal(t, time.Hour, cfg.RateLimit.StatsTTL)
	assert.True(t, cfg.RateLimit.StatsTrackKeys)
}

func TestApplyEnv_MalformedValueIsAnError(t *testing.T) {
	cases := map[string]string{
		"PW_MESSAGE_MAX_LENGTH":             "70000",
		"PW_FILE_MAX_SIZE":                  "-5",
		"PW_FILE_UPLOAD_ENABLED":            "yes please",
		"PW_CONCURRENCY_TIMEOUT":            "soon",
		"PW_RATE_LIMIT_REQUESTS_PER_MINUTE": "abc",
		"PW_RATE_LIMIT_MAX_KEYS":            "many",
		"PW_RATE_LIMIT_STATS_TTL":           "1 day",
	}
	for k, v := range cases {
		cfg := Default()
		err := cfg.applyEnv(env(map[string]string{k: v}))
		require.Error(t, err, k)
		assert.Contains(t, err.Error(), "invalid "+k)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pw.yml")
	require.NoError(t, os.WriteFile(path, []byte(fullDoc), 0o600))

	t.Setenv("PW_MESSAGE_MAX_LENGTH", "1000")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(1000), cfg.MessageMaxLength)
	assert.Equal(t, "127.0.0.1:9090", cfg.Listen)

	_, err = Load(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)
}

func TestPolicies(t *testing.T) {
	cfg, err := Parse([]byte(fullDoc))
	require.NoError(t, err)

	trust := cfg.Trust()
	require.NotNil(t, trust)
	assert.True(t, trust.Enabled)
	assert.Len(t, trust.TrustedProxies, 2)

	lp := cfg.Limits()
	assert.True(t, lp.Enabled)
	assert.Equal(t, "192.168.1.100", lp.Whitelist[0].Pattern)
	assert.Equal(t, uint16(8192), *lp.Whitelist[0].MessageMaxLength)
	assert.Equal(t, uint64(30000000), *lp.Defaults.EncryptedMessageMaxLength)

	// a política é uma cópia: mudar o config depois não a altera
	*cfg.EncryptedMessageMaxLength = 1
	assert.Equal(t, uint64(30000000), *lp.Defaults.EncryptedMessageMaxLength)
}

func TestValidate_AggregatesEveryViolation(t *testing.T) {
	doc := `
message-max-length: 0
log-target: syslog
ip-limits:
  enabled: true
  trusted-proxies: ["not-a-proxy"]
  whitelist:
    - ip: 192.168.1.256
    - ip: 10.0.0.1
      file-max-size: 0
    - ip: 10.0.0.1
rate-limit:
  enabled: true
  requests-per-minute: 0
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	err = cfg.Validate()
	var verr *policy.ValidationError
	require.True(t, errors.As(err, &verr))

	var kinds []policy.ViolationKind
	for _, v := range verr.Violations {
		kinds = append(kinds, v.Kind)
	}
	assert.Contains(t, kinds, policy.MessageLengthZero)
	assert.Contains(t, kinds, policy.InvalidCharacters)
	assert.Contains(t, kinds, policy.InvalidIP)
	assert.Contains(t, kinds, policy.FileSizeZero)
	assert.Contains(t, kinds, policy.DuplicatePattern)
	assert.Contains(t, kinds, policy.InvalidRateLimit)
	assert.Contains(t, err.Error(), "log-target must be 'stdout' or 'file'")
	assert.Contains(t, err.Error(), "Please correct these issues and try again.")
}

func TestValidate_DisabledRateLimitIgnoresZeroValues(t *testing.T) {
	cfg := Default()
	cfg.RateLimit.RequestsPerMinute = 0
	assert.NoError(t, cfg.Validate())
}
