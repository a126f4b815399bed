package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyowl-platform/studyowl/internal/auth"
)

type fakeVerifier struct {
	err   error
	calls int
}

func (f *fakeVerifier) VerifyKey(_ context.Context, _ string) error {
	f.calls++
	return f.err
}

func newHandlerFixture(t *testing.T) (*Handler, *fakeCredentialRepo, *fakeVerifier, uuid.UUID) {
	t.Helper()

	codec, err := NewCodec("handler-test-secret")
	require.NoError(t, err)

	repo := &fakeCredentialRepo{creds: map[uuid.UUID]*StoredCredential{}}
	resolver, err := NewResolver(repo, codec, "sk-default-key")
	require.NoError(t, err)

	verifier := &fakeVerifier{}
	handler := NewHandler(repo, codec, resolver, verifier, nil)
	userID := uuid.New()
	repo.creds[userID] = &StoredCredential{UserID: userID}

	return handler, repo, verifier, userID
}

func authedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	claims := &auth.AccessClaims{UserID: userID.String()}
	return req.WithContext(context.WithValue(req.Context(), auth.UserClaimsKey, claims))
}

func TestHandler_Set(t *testing.T) {
	t.Run("verifies, stores, and returns the masked key", func(t *testing.T) {
		handler, repo, verifier, userID := newHandlerFixture(t)

		rec := httptest.NewRecorder()
		body := `{"api_key": "sk-proj-abcdefghijklmnop"}`
		handler.Set(rec, authedRequest(http.MethodPut, "/api/v1/user/api-key", body, userID))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, verifier.calls)

		stored := repo.creds[userID]
		require.NotNil(t, stored)
		assert.True(t, stored.HasKey)
		assert.NotContains(t, stored.Encrypted, "sk-proj", "plaintext never stored")

		var resp struct {
			Data KeyInfoResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Data.HasAPIKey)
		assert.Equal(t, "sk-proj...mnop", resp.Data.MaskedKey)
	})

	t.Run("rejects keys without the sk- prefix", func(t *testing.T) {
		handler, repo, verifier, userID := newHandlerFixture(t)

		rec := httptest.NewRecorder()
		body := `{"api_key": "pk-proj-abcdefghijklmnop"}`
		handler.Set(rec, authedRequest(http.MethodPut, "/api/v1/user/api-key", body, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, verifier.calls, "format failures never reach the LLM service")
		assert.False(t, repo.creds[userID].HasKey)
	})

	t.Run("rejects keys that are too short", func(t *testing.T) {
		handler, _, verifier, userID := newHandlerFixture(t)

		rec := httptest.NewRecorder()
		handler.Set(rec, authedRequest(http.MethodPut, "/api/v1/user/api-key", `{"api_key": "sk-short"}`, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, verifier.calls)
	})

	t.Run("rejected test call stores nothing", func(t *testing.T) {
		handler, repo, verifier, userID := newHandlerFixture(t)
		verifier.err = errors.New("401 invalid key")

		rec := httptest.NewRecorder()
		body := `{"api_key": "sk-proj-abcdefghijklmnop"}`
		handler.Set(rec, authedRequest(http.MethodPut, "/api/v1/user/api-key", body, userID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, repo.creds[userID].HasKey)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		handler, _, _, _ := newHandlerFixture(t)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/v1/user/api-key", strings.NewReader(`{}`))
		handler.Set(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandler_Get(t *testing.T) {
	t.Run("no key stored", func(t *testing.T) {
		handler, _, _, userID := newHandlerFixture(t)

		rec := httptest.NewRecorder()
		handler.Get(rec, authedRequest(http.MethodGet, "/api/v1/user/api-key", "", userID))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data KeyInfoResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Data.HasAPIKey)
		assert.Empty(t, resp.Data.MaskedKey)
	})

	t.Run("stored key is masked, never echoed", func(t *testing.T) {
		handler, _, _, userID := newHandlerFixture(t)

		setRec := httptest.NewRecorder()
		body := `{"api_key": "sk-proj-abcdefghijklmnop"}`
		handler.Set(setRec, authedRequest(http.MethodPut, "/api/v1/user/api-key", body, userID))
		require.Equal(t, http.StatusOK, setRec.Code)

		rec := httptest.NewRecorder()
		handler.Get(rec, authedRequest(http.MethodGet, "/api/v1/user/api-key", "", userID))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "sk-proj-abcdefghijklmnop")

		var resp struct {
			Data KeyInfoResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Data.HasAPIKey)
		assert.Equal(t, "sk-proj...mnop", resp.Data.MaskedKey)
		assert.NotNil(t, resp.Data.SetAt)
	})
}

func TestHandler_Delete(t *testing.T) {
	handler, repo, _, userID := newHandlerFixture(t)

	setRec := httptest.NewRecorder()
	body := `{"api_key": "sk-proj-abcdefghijklmnop"}`
	handler.Set(setRec, authedRequest(http.MethodPut, "/api/v1/user/api-key", body, userID))
	require.Equal(t, http.StatusOK, setRec.Code)

	rec := httptest.NewRecorder()
	handler.Delete(rec, authedRequest(http.MethodDelete, "/api/v1/user/api-key", "", userID))

	assert.Equal(t, http.StatusOK, rec.Code)
	cred := repo.creds[userID]
	if cred != nil {
		assert.False(t, cred.HasKey)
	}
}
