package domain

import "time"

// Key identifica o bucket; no gateway é o IP do cliente em forma canônica.
type Key string

// Limiter decide se uma ação é permitida agora. Allow só consome um token
// quando retorna true.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave. A implementação controla TTL e
// tamanho máximo da tabela.
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// Canceled indica que o context já estava encerrado; nenhum token foi consumido.
	Canceled bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	RetryAfter time.Duration
}
