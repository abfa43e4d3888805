// Package logging monta o *logrus.Logger do processo a partir de log-level e
// log-target.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultFile é o arquivo usado com log-target=file.
const DefaultFile = "pw.log"

type options struct {
	filePath string
	stdout   io.Writer
}

type Option func(*options)

func WithFilePath(path string) Option {
	return func(o *options) { o.filePath = path }
}

func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// ParseLevel segue os níveis aceitos no pw.yml; valor desconhecido vira info.
// "off" retorna ok=false.
func ParseLevel(s string) (logrus.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel, true
	case "debug":
		return logrus.DebugLevel, true
	case "warn":
		return logrus.WarnLevel, true
	case "error":
		return logrus.ErrorLevel, true
	case "off":
		return logrus.PanicLevel, false
	default:
		return logrus.InfoLevel, true
	}
}

// New devolve o logger e um io.Closer para o arquivo de log (no-op em stdout).
func New(level, target string, opts ...Option) (*logrus.Logger, io.Closer, error) {
	o := options{filePath: DefaultFile, stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   target == "file",
	})

	lvl, on := ParseLevel(level)
	log.SetLevel(lvl)
	if !on {
		log.SetOutput(io.Discard)
		return log, nopCloser{}, nil
	}

	switch target {
	case "file":
		f, err := os.OpenFile(o.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", o.filePath, err)
		}
		log.SetOutput(f)
		return log, f, nil
	default:
		log.SetOutput(o.stdout)
		return log, nopCloser{}, nil
	}
}

// Discard é um logger silencioso para testes e defaults de pacotes.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
