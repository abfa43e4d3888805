package policy

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

type ViolationKind int

const (
	EmptyPattern ViolationKind = iota + 1
	WhitespaceOnlyPattern
	InvalidCharacters
	InvalidCIDR
	InvalidCIDRPrefix
	InvalidIP
	MessageLengthZero
	FileSizeZero
	FileSizeTooHigh
	DuplicatePattern
	InvalidRateLimit
)

// Violation é um problema encontrado na configuração.
//
// Section indica a origem ("whitelist", "trusted-proxies", "defaults",
// "rate-limit"); Index é a posição da entrada na lista (-1 quando não se aplica).
type Violation struct {
	Kind    ViolationKind
	Section string
	Index   int
	Value   string
	Detail  string
}

func (v Violation) Error() string {
	var msg string
	switch v.Kind {
	case EmptyPattern:
		msg = "empty IP string is not allowed"
	case WhitespaceOnlyPattern:
		msg = "whitespace-only IP string is not allowed"
	case InvalidCharacters:
		msg = fmt.Sprintf("IP address contains invalid characters: '%s'", v.Value)
	case InvalidCIDR:
		msg = fmt.Sprintf("invalid CIDR notation '%s': %s", v.Value, v.Detail)
	case InvalidCIDRPrefix:
		msg = fmt.Sprintf("CIDR prefix length in '%s' is invalid: %s", v.Value, v.Detail)
	case InvalidIP:
		msg = fmt.Sprintf("invalid IP address format '%s': %s", v.Value, v.Detail)
	case MessageLengthZero:
		msg = "message max length cannot be zero"
	case FileSizeZero:
		msg = "file max size cannot be zero"
	case FileSizeTooHigh:
		msg = fmt.Sprintf("file max size %s exceeds maximum allowed value of %d bytes", v.Value, MaxFileSize)
	case DuplicatePattern:
		msg = fmt.Sprintf("duplicate IP entry found: '%s'", v.Value)
	case InvalidRateLimit:
		msg = fmt.Sprintf("%s must be greater than zero", v.Value)
	default:
		msg = v.Detail
	}
	if v.Section == "" {
		return msg
	}
	if v.Index >= 0 {
		return fmt.Sprintf("%s[%d]: %s", v.Section, v.Index, msg)
	}
	return v.Section + ": " + msg
}

// ValidationError agrega todas as violações encontradas. O processo não sobe
// com uma configuração que produza um ValidationError.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string { return FormatReport(e.Violations) }

// FormatReport gera o relatório numerado para o operador.
func FormatReport(violations []Violation) string {
	if len(violations) == 0 {
		return "No validation errors"
	}
	var b strings.Builder
	b.WriteString("Configuration validation failed:\n")
	for i, v := range violations {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, v.Error())
	}
	b.WriteString("\nPlease correct these issues and try again.")
	return b.String()
}

// Validate confere cada entrada da whitelist e coleta todas as violações,
// sem parar na primeira. Lista vazia significa política válida.
func Validate(p LimitsPolicy) []Violation {
	var out []Violation
	seen := make(map[string]struct{}, len(p.Whitelist))

	for i, e := range p.Whitelist {
		out = append(out, ValidatePattern("whitelist", i, e.Pattern)...)

		if e.MessageMaxLength != nil && *e.MessageMaxLength == 0 {
			out = append(out, Violation{Kind: MessageLengthZero, Section: "whitelist", Index: i})
		}
		if e.FileMaxSize != nil {
			out = append(out, validateFileSize("whitelist", i, *e.FileMaxSize)...)
		}

		// o casamento ignora espaços nas pontas, então a duplicidade também
		key := strings.TrimSpace(e.Pattern)
		if _, dup := seen[key]; dup {
			out = append(out, Violation{Kind: DuplicatePattern, Section: "whitelist", Index: i, Value: e.Pattern})
			continue
		}
		seen[key] = struct{}{}
	}
	return out
}

// ValidateTrust aplica as mesmas regras de sintaxe aos trusted proxies.
func ValidateTrust(t TrustPolicy) []Violation {
	var out []Violation
	for i, s := range t.TrustedProxies {
		out = append(out, ValidatePattern("trusted-proxies", i, s)...)
	}
	return out
}

func ValidateDefaults(d Defaults) []Violation {
	var out []Violation
	if d.MessageMaxLength == 0 {
		out = append(out, Violation{Kind: MessageLengthZero, Section: "defaults", Index: -1})
	}
	out = append(out, validateFileSize("defaults", -1, d.FileMaxSize)...)
	return out
}

// ValidateRateLimit só exige valores quando o rate limit está habilitado.
func ValidateRateLimit(r RateLimitPolicy) []Violation {
	if !r.Enabled {
		return nil
	}
	var out []Violation
	if r.RequestsPerMinute == 0 {
		out = append(out, Violation{Kind: InvalidRateLimit, Section: "rate-limit", Index: -1, Value: "requests-per-minute"})
	}
	if r.BurstSize == 0 {
		out = append(out, Violation{Kind: InvalidRateLimit, Section: "rate-limit", Index: -1, Value: "burst-size"})
	}
	return out
}

// ValidatePattern valida um único IP ou CIDR.
func ValidatePattern(section string, index int, raw string) []Violation {
	v := Violation{Section: section, Index: index, Value: raw}

	if raw == "" {
		v.Kind = EmptyPattern
		return []Violation{v}
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		v.Kind = WhitespaceOnlyPattern
		return []Violation{v}
	}
	for _, c := range s {
		if !isPatternChar(c) {
			v.Kind = InvalidCharacters
			return []Violation{v}
		}
	}

	if strings.Contains(s, "/") {
		return validateCIDR(v, s)
	}

	if _, err := netip.ParseAddr(s); err != nil {
		v.Kind = InvalidIP
		v.Detail = ipFailureReason(s)
		return []Violation{v}
	}
	return nil
}

func validateCIDR(v Violation, s string) []Violation {
	_, err := netip.ParsePrefix(s)
	if err == nil {
		return nil
	}
	v.Detail = err.Error()

	addrPart, bitsPart, _ := strings.Cut(s, "/")
	addr, aerr := netip.ParseAddr(addrPart)
	n, nerr := strconv.Atoi(bitsPart)
	if aerr == nil && nerr == nil && n > addr.BitLen() {
		v.Kind = InvalidCIDRPrefix
		family := "IPv4"
		if addr.Is6() {
			family = "IPv6"
		}
		v.Detail = fmt.Sprintf("%d exceeds %d for %s address", n, addr.BitLen(), family)
		return []Violation{v}
	}

	v.Kind = InvalidCIDR
	return []Violation{v}
}

func validateFileSize(section string, index int, size uint64) []Violation {
	switch {
	case size == 0:
		return []Violation{{Kind: FileSizeZero, Section: section, Index: index}}
	case size > MaxFileSize:
		return []Violation{{Kind: FileSizeTooHigh, Section: section, Index: index, Value: strconv.FormatUint(size, 10)}}
	}
	return nil
}

func isPatternChar(c rune) bool {
	switch {
	case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		return true
	case c == ':' || c == '.' || c == '/' || c == '-':
		return true
	}
	return false
}

// ipFailureReason tenta dar uma dica útil ao operador.
func ipFailureReason(s string) string {
	if strings.Contains(s, ":") {
		return "IPv6 address format is incorrect"
	}
	if strings.Contains(s, ".") {
		octets := strings.Split(s, ".")
		if len(octets) != 4 {
			return "IPv4 address must have exactly 4 octets"
		}
		for _, o := range octets {
			n, err := strconv.ParseUint(o, 10, 32)
			if err != nil || n > 255 {
				return "IPv4 address octets must be between 0 and 255"
			}
		}
		return "IPv4 parsing failed"
	}
	return "unknown IP format"
}
