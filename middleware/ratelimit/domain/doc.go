// Package domain define contratos e tipos de domínio para rate limit e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas. A chave
// de rate limit é sempre o IP do cliente já resolvido (ver middleware/clientip).
package domain
