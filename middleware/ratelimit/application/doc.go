// Package application contém os casos de uso para rate limit e limite de
// concorrência.
//
// Depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, key) retorna uma Decision (allow/deny + retry-after).
package application
