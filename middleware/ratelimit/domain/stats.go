package domain

import (
	"context"
	"time"
)

// StatsResult é o desfecho de uma decisão do rate limit.
type StatsResult string

const (
	ResultAdmitted   StatsResult = "admitted"
	ResultRejected   StatsResult = "rejected"
	ResultBypassed   StatsResult = "bypassed"
	ResultUnresolved StatsResult = "unresolved"
)

// Results lista todos os desfechos, na ordem usada em relatórios.
var Results = []StatsResult{ResultAdmitted, ResultRejected, ResultBypassed, ResultUnresolved}

// StatsEvent representa um evento de decisão do rate limit.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de séries/chaves em uma base como Redis/Prometheus).
type StatsEvent struct {
	Key    Key
	Result StatsResult

	Method string
	Path   string

	At time.Time
}

// Allowed é true quando a requisição seguiu para o handler.
func (e StatsEvent) Allowed() bool {
	return e.Result == ResultAdmitted || e.Result == ResultBypassed
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
