package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lexatlas/legalrisk/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:        "unit-test-secret",
		TokenExpireHours: 24,
	}
}

func TestGenerateTokenRoundTrip(t *testing.T) {
	cfg := testAuthConfig()

	token, expiresAt, err := GenerateToken("reviewer", "acme", cfg)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty token")
	}

	wantExpiry := time.Now().Add(24 * time.Hour)
	if expiresAt.Before(wantExpiry.Add(-time.Minute)) || expiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Errorf("expiry %v not within a minute of %v", expiresAt, wantExpiry)
	}

	// The claims must survive a parse with the same secret
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("generated token did not parse: %v", err)
	}
	if claims.Username != "reviewer" || claims.Tenant != "acme" {
		t.Errorf("claims = %q/%q, want reviewer/acme", claims.Username, claims.Tenant)
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testAuthConfig()

	token, _, err := GenerateToken("reviewer", "acme", cfg)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"bare token without scheme", token, http.StatusUnauthorized},
		{"wrong scheme", "Token " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(AuthMiddleware(cfg))
			router.GET("/documents", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"tenant": GetTenant(c)})
			})

			req := httptest.NewRequest("GET", "/documents", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuthMiddlewareExpiredToken(t *testing.T) {
	cfg := testAuthConfig()

	claims := Claims{
		Username: "reviewer",
		Tenant:   "acme",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	router := gin.New()
	router.Use(AuthMiddleware(cfg))
	router.GET("/documents", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/documents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d for expired token, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareExposesIdentity(t *testing.T) {
	cfg := testAuthConfig()

	token, _, err := GenerateToken("reviewer", "acme", cfg)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	var gotUser, gotTenant string
	router := gin.New()
	router.Use(AuthMiddleware(cfg))
	router.GET("/documents", func(c *gin.Context) {
		gotUser = GetUsername(c)
		gotTenant = GetTenant(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/documents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(httptest.NewRecorder(), req)

	if gotUser != "reviewer" {
		t.Errorf("GetUsername = %q, want reviewer", gotUser)
	}
	if gotTenant != "acme" {
		t.Errorf("GetTenant = %q, want acme", gotTenant)
	}
}

func TestIdentityAccessorsOutsideMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if GetUsername(c) != "" {
		t.Error("expected empty username on a bare context")
	}
	if GetTenant(c) != "" {
		t.Error("expected empty tenant on a bare context")
	}

	c.Set(ContextUsername, "reviewer")
	c.Set(ContextTenant, "acme")
	if GetUsername(c) != "reviewer" || GetTenant(c) != "acme" {
		t.Errorf("accessors = %q/%q, want reviewer/acme", GetUsername(c), GetTenant(c))
	}
}
