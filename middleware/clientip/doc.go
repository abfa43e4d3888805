// Package clientip determina o IP real do cliente a partir do endereço da
// conexão e, quando a conexão vem de um proxy confiável, dos headers
// X-Forwarded-For e X-Real-IP.
//
// Matriz de decisão:
//
//   - política nil ou desabilitada: headers são confiados (modo legado)
//   - política habilitada sem trusted proxies: sempre o IP da conexão
//   - conexão fora da lista de trusted proxies: IP da conexão
//   - conexão confiável: primeiro token do XFF, depois X-Real-IP, depois conexão
//
// Um valor de header só é aceito se for exatamente um endereço IP (sem porta,
// colchetes, zona ou lixo no final). Valor inválido cai para a próxima fonte,
// nunca gera erro.
//
// O Middleware grava o resultado no context da requisição; os demais
// middlewares leem com FromContext.
package clientip
