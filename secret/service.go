package secret

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pw-gateway/logging"
	"pw-gateway/policy"
)

// Observer recebe cada operação (store, load, remove) com o desfecho
// (ok, not_found, conflict, too_large, rejected, error).
type Observer func(operation, result string)

type Service struct {
	storage           Storage
	fileUploadEnabled bool
	log               logrus.FieldLogger
	observe           Observer
}

type Option func(*Service)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observe = o
		}
	}
}

func NewService(storage Storage, fileUploadEnabled bool, opts ...Option) *Service {
	s := &Service{
		storage:           storage,
		fileUploadEnabled: fileUploadEnabled,
		log:               logging.Discard(),
		observe:           func(string, string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store aplica os limites já resolvidos para o IP do cliente e grava o
// segredo. Um ID vazio recebe um UUID novo, devolvido ao chamador.
func (s *Service) Store(ctx context.Context, sec Secret, limits policy.EffectiveLimits) (string, error) {
	log := s.log.WithFields(logrus.Fields{
		"content_type": sec.ContentType,
		"payload_size": len(sec.Payload),
		"limit":        limits.EncryptedMessageMaxLength,
	})

	if err := sec.Validate(); err != nil {
		s.observe("store", "rejected")
		return "", err
	}
	if sec.ContentType == ContentFile && !s.fileUploadEnabled {
		log.Info("file upload is disabled")
		s.observe("store", "rejected")
		return "", ErrFileUploadDisabled
	}
	if uint64(len(sec.Payload)) > limits.EncryptedMessageMaxLength {
		log.Info("secret payload exceeds client limit")
		s.observe("store", "too_large")
		return "", ErrPayloadTooLarge
	}

	if sec.ID == "" {
		sec.ID = uuid.NewString()
	}

	if err := s.storage.Store(ctx, sec); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			s.observe("store", "conflict")
			return "", err
		}
		log.WithError(err).Error("failed to store secret")
		s.observe("store", "error")
		return "", err
	}

	log.WithField("id", sec.ID).Info("secret stored")
	s.observe("store", "ok")
	return sec.ID, nil
}

func (s *Service) Load(ctx context.Context, id string) (Secret, error) {
	sec, err := s.storage.Load(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		s.log.WithField("id", id).Info("secret not found")
		s.observe("load", "not_found")
		return Secret{}, err
	case err != nil:
		s.log.WithField("id", id).WithError(err).Error("failed to load secret")
		s.observe("load", "error")
		return Secret{}, err
	}
	s.observe("load", "ok")
	return sec, nil
}

func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.storage.Remove(ctx, id); err != nil {
		s.log.WithField("id", id).WithError(err).Error("failed to remove secret")
		s.observe("remove", "error")
		return err
	}
	s.log.WithField("id", id).Info("secret removed")
	s.observe("remove", "ok")
	return nil
}

func (s *Service) FileUploadEnabled() bool { return s.fileUploadEnabled }
