package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pw-gateway/limits"
	"pw-gateway/middleware/clientip"
	"pw-gateway/policy"
	"pw-gateway/secret"
)

func u16(v uint16) *uint16 { return &v }

type fixture struct {
	handler http.Handler
	mr      *miniredis.Miniredis
}

func newFixture(t *testing.T, fileUpload bool, mws ...func(http.Handler) http.Handler) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	lp := policy.LimitsPolicy{
		Enabled:  true,
		Defaults: policy.Defaults{MessageMaxLength: 16, FileMaxSize: 32},
		Whitelist: []policy.RuleEntry{
			{Pattern: "10.0.0.0/8", MessageMaxLength: u16(200)},
		},
	}
	res := limits.NewResolver(lp)

	h := NewRouter(Options{
		Secrets:           secret.NewService(secret.NewRedisStorage(rdb), fileUpload),
		Limits:            res,
		FileUploadEnabled: fileUpload,
		BodyLimit:         int64(limits.BodyLimit(limits.ComputeMaxBodyLimit(lp))) + 512,
		Version:           "1.2.3",
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("pw_up 1\n"))
		}),
		Middlewares: mws,
	})
	return fixture{handler: h, mr: mr}
}

// withIP simula o middleware de IP do cliente.
func withIP(ip string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(clientip.NewContext(r.Context(), netip.MustParseAddr(ip))))
		})
	}
}

func secretBody(id, payload, policy string) string {
	b, _ := json.Marshal(map[string]any{
		"id":             id,
		"contentType":    "Text",
		"metadata":       map[string]any{"name": "", "type": "", "size": 0},
		"payload":        payload,
		"ttl":            "OneHour",
		"downloadPolicy": policy,
	})
	return string(b)
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStoreAndLoadOneTime(t *testing.T) {
	f := newFixture(t, true, withIP("203.0.113.5"))

	rec := do(f.handler, http.MethodPost, "/api/secret", secretBody("abc", "c2VjcmV0", "OneTime"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp storeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "abc", resp.ID)

	rec = do(f.handler, http.MethodGet, "/api/secret/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got secret.Secret
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "c2VjcmV0", got.Payload)
	assert.Equal(t, secret.DownloadOneTime, got.DownloadPolicy)

	rec = do(f.handler, http.MethodGet, "/api/secret/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStore_GeneratesID(t *testing.T) {
	f := newFixture(t, true, withIP("203.0.113.5"))

	rec := do(f.handler, http.MethodPost, "/api/secret", secretBody("", "x", "Unlimited"))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp storeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(f.handler, http.MethodGet, "/api/secret/"+resp.ID, "").Code)
	}
}

func TestStore_PerClientLimits(t *testing.T) {
	// default: 32 * 1.35 = 44 bytes; 10.0.0.0/8: 200 * 1.35 = 270 bytes
	payload := strings.Repeat("a", 100)

	f := newFixture(t, true, withIP("203.0.113.5"))
	rec := do(f.handler, http.MethodPost, "/api/secret", secretBody("", payload, "OneTime"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	f = newFixture(t, true, withIP("10.1.2.3"))
	rec = do(f.handler, http.MethodPost, "/api/secret", secretBody("", payload, "OneTime"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStore_BodyOverTransportLimit(t *testing.T) {
	f := newFixture(t, true, withIP("10.1.2.3"))
	rec := do(f.handler, http.MethodPost, "/api/secret", secretBody("", strings.Repeat("a", 4096), "OneTime"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestStore_Rejections(t *testing.T) {
	f := newFixture(t, false, withIP("203.0.113.5"))

	rec := do(f.handler, http.MethodPost, "/api/secret", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(f.handler, http.MethodPost, "/api/secret", strings.Replace(secretBody("", "x", "OneTime"), `"OneHour"`, `"Forever"`, 1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	file := strings.Replace(secretBody("", "x", "OneTime"), `"Text"`, `"File"`, 1)
	rec = do(f.handler, http.MethodPost, "/api/secret", file)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file upload is disabled")
}

func TestStore_Conflict(t *testing.T) {
	f := newFixture(t, true, withIP("203.0.113.5"))
	require.Equal(t, http.StatusOK, do(f.handler, http.MethodPost, "/api/secret", secretBody("dup", "x", "Unlimited")).Code)
	assert.Equal(t, http.StatusConflict, do(f.handler, http.MethodPost, "/api/secret", secretBody("dup", "y", "Unlimited")).Code)
}

func TestStore_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	h := NewRouter(Options{
		Secrets:   secret.NewService(secret.NewRedisStorage(rdb), true),
		Limits:    limits.NewResolver(policy.LimitsPolicy{Defaults: policy.Defaults{MessageMaxLength: 16, FileMaxSize: 32}}),
		BodyLimit: 1 << 20,
	})
	rec := do(h, http.MethodPost, "/api/secret", secretBody("", "x", "OneTime"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dial")
}

func TestRemove(t *testing.T) {
	f := newFixture(t, true, withIP("203.0.113.5"))
	require.Equal(t, http.StatusOK, do(f.handler, http.MethodPost, "/api/secret", secretBody("gone", "x", "Unlimited")).Code)

	assert.Equal(t, http.StatusOK, do(f.handler, http.MethodDelete, "/api/secret/gone", "").Code)
	assert.Equal(t, http.StatusNotFound, do(f.handler, http.MethodGet, "/api/secret/gone", "").Code)
	// idempotente
	assert.Equal(t, http.StatusOK, do(f.handler, http.MethodDelete, "/api/secret/gone", "").Code)
}

func TestConfigReflectsClient(t *testing.T) {
	cases := []struct {
		mws  []func(http.Handler) http.Handler
		want configResponse
	}{
		{[]func(http.Handler) http.Handler{withIP("10.9.9.9")}, configResponse{200, true, 32}},
		{[]func(http.Handler) http.Handler{withIP("203.0.113.1")}, configResponse{16, true, 32}},
		{nil, configResponse{16, true, 32}},
	}
	for _, tc := range cases {
		f := newFixture(t, true, tc.mws...)
		rec := do(f.handler, http.MethodGet, "/api/config", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got configResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, tc.want, got)
	}
}

func TestVersion(t *testing.T) {
	f := newFixture(t, true)
	rec := do(f.handler, http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.2.3", rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
}

func TestMetricsSkipsMiddlewares(t *testing.T) {
	var hits int
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits++
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	f := newFixture(t, true, deny)

	rec := do(f.handler, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pw_up 1")
	assert.Equal(t, 0, hits)

	assert.Equal(t, http.StatusTooManyRequests, do(f.handler, http.MethodGet, "/api/version", "").Code)
	assert.Equal(t, 1, hits)
}

func TestRecoversFromPanics(t *testing.T) {
	h := NewRouter(Options{
		Secrets: panicking{},
		Limits:  limits.NewResolver(policy.LimitsPolicy{Defaults: policy.Defaults{MessageMaxLength: 1, FileMaxSize: 1}}),
	})
	rec := do(h, http.MethodGet, "/api/secret/x", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panicking struct{}

func (panicking) Store(context.Context, secret.Secret, policy.EffectiveLimits) (string, error) {
	panic("boom")
}
func (panicking) Load(context.Context, string) (secret.Secret, error) { panic("boom") }
func (panicking) Remove(context.Context, string) error                { panic("boom") }

func TestNewRouter_NilLoggerFallsBackToDiscard(t *testing.T) {
	h := NewRouter(Options{
		Secrets: conflicting{},
		Limits:  limits.NewResolver(policy.LimitsPolicy{Defaults: policy.Defaults{MessageMaxLength: 8, FileMaxSize: 8}}),
	})
	rec := do(h, http.MethodPost, "/api/secret", secretBody("x", "x", "OneTime"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

type conflicting struct{ panicking }

func (conflicting) Store(context.Context, secret.Secret, policy.EffectiveLimits) (string, error) {
	return "", secret.ErrAlreadyExists
}
