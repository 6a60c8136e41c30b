package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-secret-key-at-least-32-bytes!!")

func createTestToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func validClaims() *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name:  "Ana Gómez",
		Roles: []string{RoleBilling},
	}
}

func runMiddleware(mw echo.MiddlewareFunc, authHeader string) (echo.Context, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var seen echo.Context
	err := mw(func(c echo.Context) error {
		seen = c
		return c.NoContent(http.StatusOK)
	})(c)
	return seen, err
}

func statusOf(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSecret}), "")
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	_, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSecret}), "Basic abc")
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tok := createTestToken(t, validClaims())
	c, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSecret}), "Bearer "+tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "user-1" {
		t.Errorf("expected user-1, got %q", got)
	}
	if got := UserNameFromContext(ctx); got != "Ana Gómez" {
		t.Errorf("expected name, got %q", got)
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != RoleBilling {
		t.Errorf("unexpected roles %v", roles)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSecret}), "Bearer "+createTestToken(t, claims))
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	tok := createTestToken(t, validClaims())
	_, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: []byte("another-secret-another-secret-xx")}), "Bearer "+tok)
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_IssuerMismatch(t *testing.T) {
	claims := validClaims()
	claims.Issuer = "https://other"
	tok := createTestToken(t, claims)
	_, err := runMiddleware(JWTMiddleware(JWTConfig{SigningKey: testSecret, Issuer: "https://auth.carelink"}), "Bearer "+tok)
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_JWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []JWKSKey{{
				Kty: "RSA",
				Kid: "k1",
				N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	defer srv.Close()

	claims := validClaims()
	claims.Issuer = srv.URL
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}

	c, err := runMiddleware(JWTMiddleware(JWTConfig{Issuer: srv.URL}), "Bearer "+signed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if UserIDFromContext(c.Request().Context()) != "user-1" {
		t.Error("expected subject from RS256 token")
	}
}

func TestDevAuthMiddleware_Defaults(t *testing.T) {
	c, err := runMiddleware(DevAuthMiddleware(JWTConfig{}), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if UserIDFromContext(ctx) != "dev-user" {
		t.Errorf("expected dev-user, got %q", UserIDFromContext(ctx))
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != RoleAdmin {
		t.Errorf("expected admin role, got %v", roles)
	}
}

func TestDevAuthMiddleware_VerifiesPresentedToken(t *testing.T) {
	_, err := runMiddleware(DevAuthMiddleware(JWTConfig{SigningKey: testSecret}), "Bearer garbage")
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}

	c, err := runMiddleware(DevAuthMiddleware(JWTConfig{SigningKey: testSecret}), "Bearer "+createTestToken(t, validClaims()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if UserIDFromContext(c.Request().Context()) != "user-1" {
		t.Error("expected token subject, not dev user")
	}
}
