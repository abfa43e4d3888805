// Package policy define os tipos imutáveis de política (confiança em proxies,
// limites por IP e rate limit), o casamento de padrões IP/CIDR e a validação
// da configuração antes do boot.
//
// Este pacote não depende de net/http. As políticas são construídas uma vez no
// startup e compartilhadas somente-leitura por todas as requisições.
//
// Regras importantes:
//
//   - a whitelist é ordenada: vence a PRIMEIRA entrada que casar, não a mais específica
//   - TrustPolicy habilitada com TrustedProxies vazio nunca confia em headers de proxy
//   - EncryptedMessageMaxLength >= max(MessageMaxLength, FileMaxSize), sempre
package policy
