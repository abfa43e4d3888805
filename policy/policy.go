package policy

import "math/bits"

const (
	// EncryptionOverheadFactor é o fator aplicado sobre max(mensagem, arquivo)
	// para estimar o tamanho do payload já cifrado (base64 + envelope).
	// O cálculo usa a fração inteira overheadNum/overheadDen para ser exato.
	EncryptionOverheadFactor = 1.35

	overheadNum = 135
	overheadDen = 100
)

const (
	// MaxMessageLength é o teto do tipo uint16.
	MaxMessageLength uint16 = 65535
	// MaxFileSize é 10 GiB.
	MaxFileSize uint64 = 10_737_418_240
)

// TrustPolicy governa se headers de proxy (X-Forwarded-For / X-Real-IP) são
// consultados. Um ponteiro nil significa "sem política" (modo legado).
type TrustPolicy struct {
	Enabled        bool
	TrustedProxies []string
}

// RuleEntry é um elemento da whitelist. Campos nil herdam o default.
type RuleEntry struct {
	Pattern          string
	MessageMaxLength *uint16
	FileMaxSize      *uint64
}

// Defaults são os limites do processo.
//
// EncryptedMessageMaxLength é um override fixo opcional; quando nil o valor é
// derivado com EncryptionOverheadFactor.
type Defaults struct {
	MessageMaxLength          uint16
	FileMaxSize               uint64
	EncryptedMessageMaxLength *uint64
}

type LimitsPolicy struct {
	Enabled   bool
	Whitelist []RuleEntry
	Defaults  Defaults
}

// EffectiveLimits é calculado a cada resolução, nunca armazenado.
type EffectiveLimits struct {
	MessageMaxLength          uint16
	FileMaxSize               uint64
	EncryptedMessageMaxLength uint64
}

type RateLimitPolicy struct {
	Enabled           bool
	RequestsPerMinute uint32
	BurstSize         uint32
}

// EncryptedLimit retorna ceil(max(msg, file) * 1.35), saturando em MaxUint64.
func EncryptedLimit(msg uint16, file uint64) uint64 {
	base := file
	if uint64(msg) > base {
		base = uint64(msg)
	}

	hi, lo := bits.Mul64(base, overheadNum)
	if hi >= overheadDen {
		return ^uint64(0)
	}
	q, r := bits.Div64(hi, lo, overheadDen)
	if r != 0 {
		if q == ^uint64(0) {
			return q
		}
		q++
	}
	return q
}

// Effective retorna os limites default já com o tamanho cifrado resolvido.
func (d Defaults) Effective() EffectiveLimits {
	enc := EncryptedLimit(d.MessageMaxLength, d.FileMaxSize)
	if d.EncryptedMessageMaxLength != nil {
		enc = *d.EncryptedMessageMaxLength
		// o override nunca pode ficar abaixo do maior limite em claro
		if floor := maxLimit(d.MessageMaxLength, d.FileMaxSize); enc < floor {
			enc = floor
		}
	}
	return EffectiveLimits{
		MessageMaxLength:          d.MessageMaxLength,
		FileMaxSize:               d.FileMaxSize,
		EncryptedMessageMaxLength: enc,
	}
}

// Apply aplica os overrides da entrada sobre os defaults.
// O tamanho cifrado de uma entrada é sempre derivado.
func (e RuleEntry) Apply(d Defaults) EffectiveLimits {
	msg := d.MessageMaxLength
	if e.MessageMaxLength != nil {
		msg = *e.MessageMaxLength
	}
	file := d.FileMaxSize
	if e.FileMaxSize != nil {
		file = *e.FileMaxSize
	}
	return EffectiveLimits{
		MessageMaxLength:          msg,
		FileMaxSize:               file,
		EncryptedMessageMaxLength: EncryptedLimit(msg, file),
	}
}

func maxLimit(msg uint16, file uint64) uint64 {
	if uint64(msg) > file {
		return uint64(msg)
	}
	return file
}
