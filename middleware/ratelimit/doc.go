// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: token bucket por IP, semáforo, contadores de estatística
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. clientip.Middleware grava o IP real do cliente no context
//  2. BypassMiddleware marca requisições de IPs da whitelist
//  3. Middleware pula as marcadas; as demais consultam o bucket do IP
//  4. Sem IP resolvido a requisição é negada com 429 (fail closed)
//  5. Se permitido, chama o próximo handler (rotas da API)
//
// A configuração vem da seção rate-limit do pw.yml (requests-per-minute,
// burst-size, idle-ttl, max-keys) e das chaves concurrency-max e
// concurrency-timeout.
package ratelimit
