package infra

import (
	"context"
	"sync"

	"pw-gateway/middleware/ratelimit/domain"
)

// Counters soma decisões por desfecho.
type Counters struct {
	Admitted   int64
	Rejected   int64
	Bypassed   int64
	Unresolved int64
}

func (c *Counters) add(r domain.StatsResult) {
	switch r {
	case domain.ResultAdmitted:
		c.Admitted++
	case domain.ResultRejected:
		c.Rejected++
	case domain.ResultBypassed:
		c.Bypassed++
	case domain.ResultUnresolved:
		c.Unresolved++
	}
}

// MemoryStatsStore guarda os contadores em memória. Não faz expiração: os
// mapas por rota (o path inclui IDs de segredo) e por IP crescem sem limite,
// então em produção use WithTrackRoutes(false) e deixe WithTrackKeys desligado.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byKey   map[string]Counters

	trackRoutes bool
	trackKeys   bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func WithTrackRoutes(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackRoutes = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),

		trackRoutes: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Result)

	if s.trackRoutes {
		route := ev.Method + " " + ev.Path
		c := s.byRoute[route]
		c.add(ev.Result)
		s.byRoute[route] = c
	}

	if s.trackKeys && ev.Key != "" {
		k := s.byKey[string(ev.Key)]
		k.add(ev.Result)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v
	}
	return out
}
