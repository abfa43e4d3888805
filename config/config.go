// Package config carrega o pw.yml, aplica overrides de ambiente PW_* e
// converte o resultado nas políticas imutáveis do pacote policy.
//
// Ordem: .env (opcional, via godotenv) -> defaults -> arquivo YAML (estrito,
// chaves desconhecidas são erro) -> variáveis PW_*. Um override malformado é
// erro de carga, nunca um default silencioso.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "pw.yml"

type Config struct {
	Listen    string `yaml:"listen"`
	LogLevel  string `yaml:"log-level"`
	LogTarget string `yaml:"log-target"`

	MessageMaxLength  uint16 `yaml:"message-max-length"`
	FileUploadEnabled bool   `yaml:"file-upload-enabled"`
	FileMaxSize       uint64 `yaml:"file-max-size"`
	// EncryptedMessageMaxLength é o override fixo; nil deriva com o fator 1.35.
	EncryptedMessageMaxLength *uint64 `yaml:"encrypted-message-max-length"`

	RedisURL string `yaml:"redis-url"`

	ConcurrencyMax     int           `yaml:"concurrency-max"`
	ConcurrencyTimeout time.Duration `yaml:"concurrency-timeout"`

	// IPLimits nil significa seção ausente: headers de proxy são confiados
	// (modo legado) e não há whitelist.
	IPLimits  *IPLimits `yaml:"ip-limits"`
	RateLimit RateLimit `yaml:"rate-limit"`
}

type IPLimits struct {
	Enabled        bool             `yaml:"enabled"`
	TrustedProxies []string         `yaml:"trusted-proxies"`
	Whitelist      []WhitelistEntry `yaml:"whitelist"`
}

type WhitelistEntry struct {
	IP               string  `yaml:"ip"`
	MessageMaxLength *uint16 `yaml:"message-max-length"`
	FileMaxSize      *uint64 `yaml:"file-max-size"`
}

type RateLimit struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerMinute uint32        `yaml:"requests-per-minute"`
	BurstSize         uint32        `yaml:"burst-size"`
	IdleTTL           time.Duration `yaml:"idle-ttl"`
	MaxKeys           int           `yaml:"max-keys"`
	StatsRedis        bool          `yaml:"stats-redis"`
	// StatsTTL expira os buckets por minuto e os contadores por IP no Redis.
	StatsTTL       time.Duration `yaml:"stats-ttl"`
	StatsTrackKeys bool          `yaml:"stats-track-keys"`
	AddHeaders     bool          `yaml:"add-headers"`
}

// Default retorna a configuração usada quando uma chave não aparece no arquivo.
func Default() Config {
	return Config{
		Listen:            "0.0.0.0:8080",
		LogLevel:          "info",
		LogTarget:         "stdout",
		MessageMaxLength:  1024,
		FileUploadEnabled: true,
		FileMaxSize:       10485760,
		RedisURL:          "redis://127.0.0.1:6379/0",
		ConcurrencyMax:    100,
		RateLimit: RateLimit{
			RequestsPerMinute: 60,
			BurstSize:         10,
			IdleTTL:           15 * time.Minute,
			MaxKeys:           100000,
			StatsTTL:          24 * time.Hour,
		},
	}
}

// Load lê o arquivo em path e aplica os overrides PW_*. Não valida: chame
// Validate antes de usar o resultado.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodifica um documento YAML sobre os defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) String() string {
	enc := "derived"
	if c.EncryptedMessageMaxLength != nil {
		enc = fmt.Sprintf("%d", *c.EncryptedMessageMaxLength)
	}
	return fmt.Sprintf("listen: '%s', log-level: %s, log-target: %s, message-max-length: %d, "+
		"file-upload-enabled: %v, file-max-size: %d, encrypted-message-max-length: %s, "+
		"ip-limits: %v, rate-limit: %v",
		c.Listen, c.LogLevel, c.LogTarget, c.MessageMaxLength,
		c.FileUploadEnabled, c.FileMaxSize, enc,
		c.IPLimits != nil && c.IPLimits.Enabled, c.RateLimit.Enabled)
}
