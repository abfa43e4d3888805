package ratelimit

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"pw-gateway/logging"
	"pw-gateway/middleware/clientip"
	"pw-gateway/middleware/ratelimit/application"
	"pw-gateway/middleware/ratelimit/domain"
)

const rejectBody = "rate limit exceeded"

// KeyFunc extrai a chave do bucket. ok=false é falha de extração e a
// requisição é negada.
type KeyFunc func(r *http.Request) (key string, ok bool)

type Options struct {
	Store               domain.LimiterStore
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
	Logger              logrus.FieldLogger
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// DefaultKeyFunc usa o IP resolvido por clientip.Middleware. Headers não são
// lidos aqui: a política de confiança já foi aplicada.
func DefaultKeyFunc() KeyFunc {
	return func(r *http.Request) (string, bool) {
		ip, ok := clientip.FromContext(r.Context())
		if !ok {
			return "", false
		}
		return ip.String(), true
	}
}

// defaultRetryAfter é o tempo para um token novo: 60s/rpm.
func defaultRetryAfter(store domain.LimiterStore) time.Duration {
	if ri, ok := store.(rateInfo); ok && ri.RPS() > 0 {
		return time.Duration(float64(time.Second) / ri.RPS())
	}
	return 1 * time.Second
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = defaultRetryAfter(opts.Store)
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	record := func(r *http.Request, key string, result domain.StatsResult) {
		if opts.Stats == nil {
			return
		}
		_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
			Key:    domain.Key(key),
			Result: result,
			Method: r.Method,
			Path:   r.URL.Path,
			At:     time.Now(),
		})
	}

	reject := func(w http.ResponseWriter, retryAfter time.Duration) {
		w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
		http.Error(w, rejectBody, opts.RejectStatus)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Bypassed(r.Context()) {
				ip, _ := clientip.FromContext(r.Context())
				record(r, ip.String(), domain.ResultBypassed)
				next.ServeHTTP(w, r)
				return
			}

			key, ok := opts.KeyFn(r)
			if !ok || key == "" {
				log.WithFields(logrus.Fields{
					"remote_addr": r.RemoteAddr,
					"method":      r.Method,
					"path":        r.URL.Path,
				}).Warn("rate limit key extraction failed, denying request")
				record(r, "", domain.ResultUnresolved)
				reject(w, opts.RetryAfter)
				return
			}

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			dec := svc.Decide(r.Context(), domain.Key(key))
			if dec.Canceled {
				return
			}
			if !dec.Allowed {
				record(r, key, domain.ResultRejected)
				log.WithField("client_ip", key).Debug("rate limit exceeded")
				reject(w, dec.RetryAfter)
				return
			}

			record(r, key, domain.ResultAdmitted)
			next.ServeHTTP(w, r)
		})
	}
}
