package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "test-issuer"}

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)
	return token
}

func TestParseValidToken(t *testing.T) {
	token := sign(t, jwt.MapClaims{
		"sub":    "user-1",
		"name":   "Nguyễn Văn An",
		"iss":    testConfig.Issuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": []string{ScopeActivitiesWrite},
	})

	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "Nguyễn Văn An", claims.DisplayName())
	require.True(t, claims.HasScope(ScopeActivitiesWrite))
	require.True(t, claims.HasScope(ScopeActivitiesRead))
	require.False(t, claims.HasScope(ScopeActivitiesApprove))
}

func TestParseRejectsBadTokens(t *testing.T) {
	_, err := Parse(" ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)

	expired := sign(t, jwt.MapClaims{"sub": "u", "iss": testConfig.Issuer, "exp": time.Now().Add(-time.Hour).Unix()})
	_, err = Parse(expired, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := sign(t, jwt.MapClaims{"sub": "u", "iss": "other", "exp": time.Now().Add(time.Hour).Unix()})
	_, err = Parse(wrongIssuer, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	noSubject := sign(t, jwt.MapClaims{"iss": testConfig.Issuer, "exp": time.Now().Add(time.Hour).Unix()})
	_, err = Parse(noSubject, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	noExpiry := sign(t, jwt.MapClaims{"sub": "u", "iss": testConfig.Issuer})
	_, err = Parse(noExpiry, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestScopesFromString(t *testing.T) {
	token := sign(t, jwt.MapClaims{
		"sub":    "approver",
		"iss":    testConfig.Issuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": "activities:approve  other",
	})
	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	require.True(t, claims.HasScope(ScopeActivitiesApprove))
	require.True(t, claims.HasScope(ScopeActivitiesRead))
	require.True(t, claims.HasScope("other"))
	require.Equal(t, "approver", claims.DisplayName())
}

func TestMiddleware(t *testing.T) {
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := NewMiddleware(testConfig).Wrap(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Nil(t, seen)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/v1/activities", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Nil(t, seen)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/activities", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), ErrMissingToken.Error())

	req := httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var failed error
	custom := NewMiddleware(testConfig)
	custom.OnFailure = func(w http.ResponseWriter, _ *http.Request, err error) {
		failed = err
		w.WriteHeader(http.StatusTeapot)
	}
	req = httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	custom.Wrap(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.ErrorIs(t, failed, ErrInvalidToken)

	req = httptest.NewRequest(http.MethodGet, "/v1/activities", nil)
	req.Header.Set("Authorization", "bearer "+sign(t, jwt.MapClaims{
		"sub": "user-9", "iss": testConfig.Issuer, "exp": time.Now().Add(time.Hour).Unix(),
	}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, "user-9", seen.Subject)
}
