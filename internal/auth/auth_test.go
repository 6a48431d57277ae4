package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const secret = "s3cret-widget"

func newService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return NewService(map[string]string{"pk_test": string(hash)}, "jwt-secret", time.Hour)
}

func TestHashSecret(t *testing.T) {
	hash, err := HashSecret("abc")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("abc")))
}

func TestService_CreateSession(t *testing.T) {
	s := newService(t)

	session, err := s.CreateSession(context.Background(), "pk_test."+secret, "prod_42")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(session.SessionID, "sess_"))

	claims, err := s.ValidateToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.SessionID, claims.Subject)
	assert.Equal(t, "pk_test", claims.PublicKey)
	assert.Equal(t, "prod_42", claims.ProductID)

	for _, key := range []string{"pk_test.wrong", "pk_other." + secret, "pk_test", "pk_test.", ""} {
		_, err := s.CreateSession(context.Background(), key, "")
		assert.ErrorIs(t, err, ErrInvalidAPIKey, key)
	}
}

func TestService_ValidateToken(t *testing.T) {
	s := newService(t)
	session, err := s.CreateSession(context.Background(), "pk_test."+secret, "")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := *s
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.ValidateToken(session.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewService(nil, "different", time.Hour)
		_, err := other.ValidateToken(session.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "sess_x"},
		})
		raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.ValidateToken(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestHandler_CreateSession(t *testing.T) {
	h := NewHandler(newService(t), nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid key", `{"apiKey":"pk_test.` + secret + `","productId":"prod_1"}`, http.StatusCreated},
		{"wrong key", `{"apiKey":"pk_test.nope"}`, http.StatusUnauthorized},
		{"missing key", `{}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.CreateSession(rr, httptest.NewRequest(http.MethodPost, "/auth/session", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestMiddleware(t *testing.T) {
	s := newService(t)
	session, err := s.CreateSession(context.Background(), "pk_test."+secret, "prod_1")
	require.NoError(t, err)

	protected := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ClaimsFromContext(r.Context()))
	}))

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/designs/x", nil)
		req.Header.Set("Authorization", "Bearer "+session.Token)
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)

		var claims Claims
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&claims))
		assert.Equal(t, "prod_1", claims.ProductID)
	})

	t.Run("query token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws/session/x?token="+session.Token, nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("rejected", func(t *testing.T) {
		for _, header := range []string{"", "Basic abc", "Bearer nope"} {
			req := httptest.NewRequest(http.MethodGet, "/api/designs/x", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rr := httptest.NewRecorder()
			protected.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code, header)
		}
	})

	assert.Nil(t, ClaimsFromContext(context.Background()))
}
