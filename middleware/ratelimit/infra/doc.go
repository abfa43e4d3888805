// Package infra contém implementações concretas para os contratos do pacote
// domain:
//   - Store: token bucket por IP usando golang.org/x/time/rate, com TTL de
//     inatividade e teto de chaves
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore, RedisStatsStore e MultiStats: contadores de decisões
package infra
