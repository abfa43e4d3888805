// Package secret guarda os segredos já cifrados pelo cliente no Redis.
//
// O servidor nunca vê o texto claro: Payload é opaco. O pacote só aplica os
// limites de tamanho do cliente, o TTL e a política de download.
package secret

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("secret not found")
	ErrAlreadyExists      = errors.New("secret already exists")
	ErrPayloadTooLarge    = errors.New("secret payload too large")
	ErrFileUploadDisabled = errors.New("file upload is disabled")
	ErrInvalidSecret      = errors.New("invalid secret")
)

type ContentType string

const (
	ContentText ContentType = "Text"
	ContentFile ContentType = "File"
)

func (c ContentType) Valid() bool { return c == ContentText || c == ContentFile }

func (c *ContentType) UnmarshalText(b []byte) error {
	v := ContentType(b)
	if !v.Valid() {
		return fmt.Errorf("%w: unknown content type %q", ErrInvalidSecret, b)
	}
	*c = v
	return nil
}

type TTL string

const (
	TTLOneHour  TTL = "OneHour"
	TTLTwoHours TTL = "TwoHours"
	TTLOneDay   TTL = "OneDay"
	TTLOneWeek  TTL = "OneWeek"
)

var ttlDurations = map[TTL]time.Duration{
	TTLOneHour:  time.Hour,
	TTLTwoHours: 2 * time.Hour,
	TTLOneDay:   24 * time.Hour,
	TTLOneWeek:  7 * 24 * time.Hour,
}

// Duration retorna 0 para um TTL desconhecido.
func (t TTL) Duration() time.Duration { return ttlDurations[t] }

func (t TTL) Valid() bool { return t.Duration() > 0 }

func (t *TTL) UnmarshalText(b []byte) error {
	v := TTL(b)
	if !v.Valid() {
		return fmt.Errorf("%w: unknown ttl %q", ErrInvalidSecret, b)
	}
	*t = v
	return nil
}

type DownloadPolicy string

const (
	DownloadOneTime   DownloadPolicy = "OneTime"
	DownloadUnlimited DownloadPolicy = "Unlimited"
)

func (d DownloadPolicy) Valid() bool { return d == DownloadOneTime || d == DownloadUnlimited }

func (d *DownloadPolicy) UnmarshalText(b []byte) error {
	v := DownloadPolicy(b)
	if !v.Valid() {
		return fmt.Errorf("%w: unknown download policy %q", ErrInvalidSecret, b)
	}
	*d = v
	return nil
}

type FileMetadata struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size uint64 `json:"size"`
}

type Secret struct {
	ID             string         `json:"id"`
	ContentType    ContentType    `json:"contentType"`
	Metadata       FileMetadata   `json:"metadata"`
	Payload        string         `json:"payload"`
	TTL            TTL            `json:"ttl"`
	DownloadPolicy DownloadPolicy `json:"downloadPolicy"`
}

// Validate confere os enums; útil quando o Secret não veio de JSON.
func (s Secret) Validate() error {
	switch {
	case !s.ContentType.Valid():
		return fmt.Errorf("%w: unknown content type %q", ErrInvalidSecret, s.ContentType)
	case !s.TTL.Valid():
		return fmt.Errorf("%w: unknown ttl %q", ErrInvalidSecret, s.TTL)
	case !s.DownloadPolicy.Valid():
		return fmt.Errorf("%w: unknown download policy %q", ErrInvalidSecret, s.DownloadPolicy)
	}
	return nil
}

// String nunca inclui o payload.
func (s Secret) String() string {
	return fmt.Sprintf("[Secret] id: '%s', content-type: %s, payload: '<encrypted>', ttl: %s, download-policy: %s, metadata: %+v",
		s.ID, s.ContentType, s.TTL, s.DownloadPolicy, s.Metadata)
}
