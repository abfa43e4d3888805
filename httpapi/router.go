// Package httpapi monta as rotas HTTP do serviço sobre chi.
//
//	POST   /api/secret       grava um segredo (limites por IP do cliente)
//	GET    /api/secret/{id}  lê um segredo (OneTime é consumido)
//	DELETE /api/secret/{id}  remove (idempotente)
//	GET    /api/config       limites efetivos do cliente
//	GET    /api/version      versão em texto puro
//	GET    /metrics          Prometheus, fora da cadeia de rate limit
package httpapi

import (
	"context"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"pw-gateway/logging"
	"pw-gateway/policy"
	"pw-gateway/secret"
)

// LimitsResolver é satisfeito por *limits.Resolver.
type LimitsResolver interface {
	ResolveAddr(netip.Addr) policy.EffectiveLimits
	Defaults() policy.EffectiveLimits
}

// SecretService é satisfeito por *secret.Service.
type SecretService interface {
	Store(ctx context.Context, s secret.Secret, limits policy.EffectiveLimits) (string, error)
	Load(ctx context.Context, id string) (secret.Secret, error)
	Remove(ctx context.Context, id string) error
}

type Options struct {
	Secrets           SecretService
	Limits            LimitsResolver
	FileUploadEnabled bool
	// BodyLimit é o teto de leitura de POST /api/secret (limits.BodyLimit).
	BodyLimit int64
	Version   string
	// Metrics é servido em /metrics sem passar por Middlewares.
	Metrics http.Handler
	// Middlewares envolvem as rotas /api, na ordem dada (o primeiro é o mais externo).
	Middlewares []func(http.Handler) http.Handler
	Logger      logrus.FieldLogger
}

type handlers struct {
	opts Options
	log  logrus.FieldLogger
}

func NewRouter(opts Options) http.Handler {
	h := &handlers{opts: opts, log: opts.Logger}
	if h.log == nil {
		h.log = logging.Discard()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		for _, mw := range opts.Middlewares {
			r.Use(mw)
		}
		r.Route("/api", func(r chi.Router) {
			r.Post("/secret", h.storeSecret)
			r.Get("/secret/{id}", h.getSecret)
			r.Delete("/secret/{id}", h.removeSecret)
			r.Get("/config", h.getConfig)
			r.Get("/version", h.getVersion)
		})
	})
	return r
}
