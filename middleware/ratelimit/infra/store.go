package infra

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pw-gateway/middleware/ratelimit/domain"
)

// Store mantém um token bucket (x/time/rate) por chave, com limpeza
// periódica de chaves inativas e, opcionalmente, um teto de chaves.
//
// As entradas ficam numa lista de recência (frente = vista por último), então
// despejar a mais antiga e varrer inativas custa O(1) por chave removida.
type Store struct {
	mu           sync.Mutex
	entries      map[string]*list.Element
	recency      *list.List
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	maxKeys      int
	now          func() time.Time
	onEvict      func(key string)
}

type storeEntry struct {
	key      string
	lim      *rate.Limiter
	lastSeen time.Time
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

// WithMaxKeys limita o tamanho da tabela. Com a tabela cheia, um novo IP
// despeja a chave vista há mais tempo; a varredura de inativos fica com o
// janitor. n <= 0 desliga o teto.
func WithMaxKeys(n int) StoreOption {
	return func(s *Store) { s.maxKeys = n }
}

func withClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func withEvictHook(fn func(key string)) StoreOption {
	return func(s *Store) { s.onEvict = fn }
}

// PerMinute converte requests-per-minute na taxa por segundo do x/time/rate.
// A fração é exata: 30 rpm vira 0.5 req/s, sem piso de 1 req/s.
func PerMinute(rpm uint32) float64 {
	return float64(rpm) / 60
}

func NewStore(rps float64, burst int, opts ...StoreOption) *Store {
	s := &Store{
		entries:      make(map[string]*list.Element),
		recency:      list.New(),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) RPS() float64                { return float64(s.rps) }
func (s *Store) Burst() int                  { return s.burst }
func (s *Store) CleanupEvery() time.Duration { return s.cleanupEvery }
func (s *Store) MaxKeys() int                { return s.maxKeys }

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Get implementa domain.LimiterStore.
func (s *Store) Get(key domain.Key) domain.Limiter {
	return s.GetString(string(key))
}

func (s *Store) GetString(key string) *rate.Limiter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		ent := el.Value.(*storeEntry)
		ent.lastSeen = now
		s.recency.MoveToFront(el)
		return ent.lim
	}

	if s.maxKeys > 0 {
		for len(s.entries) >= s.maxKeys {
			s.removeLocked(s.recency.Back())
		}
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = s.recency.PushFront(&storeEntry{key: key, lim: lim, lastSeen: now})
	return lim
}

func (s *Store) Cleanup() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupLocked(now)
}

// cleanupLocked anda do fim da lista e para na primeira chave ainda ativa.
func (s *Store) cleanupLocked(now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.idleTTL)
	removed := 0
	for el := s.recency.Back(); el != nil; el = s.recency.Back() {
		if !el.Value.(*storeEntry).lastSeen.Before(cutoff) {
			break
		}
		s.removeLocked(el)
		removed++
	}
	return removed
}

func (s *Store) removeLocked(el *list.Element) {
	ent := s.recency.Remove(el).(*storeEntry)
	delete(s.entries, ent.key)
	if s.onEvict != nil {
		s.onEvict(ent.key)
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *Store) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}
