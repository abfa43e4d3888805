package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"pw-gateway/middleware/clientip"
	"pw-gateway/policy"
	"pw-gateway/secret"
)

type storeResponse struct {
	ID string `json:"id"`
}

type configResponse struct {
	MessageMaxLength  uint16 `json:"messageMaxLength"`
	FileUploadEnabled bool   `json:"fileUploadEnabled"`
	FileMaxSize       uint64 `json:"fileMaxSize"`
}

// clientLimits usa os defaults quando não há IP resolvido.
func (h *handlers) clientLimits(r *http.Request) (string, policy.EffectiveLimits) {
	ip, ok := clientip.FromContext(r.Context())
	if !ok {
		return "", h.opts.Limits.Defaults()
	}
	return ip.String(), h.opts.Limits.ResolveAddr(ip)
}

func (h *handlers) storeSecret(w http.ResponseWriter, r *http.Request) {
	if h.opts.BodyLimit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.BodyLimit)
	}

	var sec secret.Secret
	if err := json.NewDecoder(r.Body).Decode(&sec); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid secret")
		return
	}

	ip, lim := h.clientLimits(r)
	h.log.WithFields(logrus.Fields{
		"client_ip":                    ip,
		"encrypted_message_max_length": lim.EncryptedMessageMaxLength,
	}).Debug("secret storage request")

	id, err := h.opts.Secrets.Store(r.Context(), sec, lim)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, storeResponse{ID: id})
	case errors.Is(err, secret.ErrInvalidSecret), errors.Is(err, secret.ErrFileUploadDisabled):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, secret.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, secret.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func (h *handlers) getSecret(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sec, err := h.opts.Secrets.Load(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sec)
	case errors.Is(err, secret.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func (h *handlers) removeSecret(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.opts.Secrets.Remove(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	_, lim := h.clientLimits(r)
	writeJSON(w, http.StatusOK, configResponse{
		MessageMaxLength:  lim.MessageMaxLength,
		FileUploadEnabled: h.opts.FileUploadEnabled,
		FileMaxSize:       lim.FileMaxSize,
	})
}

func (h *handlers) getVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.opts.Version))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}
