package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/copyhere/server/internal/config"
	"github.com/copyhere/server/internal/middleware"
	"github.com/copyhere/server/internal/models"
	"github.com/copyhere/server/internal/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("handler-test-secret")
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.JWT.Secret = "handler-test-secret"
	return cfg
}

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&models.User{}, &models.Device{}, &models.ClipboardEntry{}, &models.RefreshToken{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	h := NewAuthHandler(newHandlerDB(t), testConfig())

	r := gin.New()
	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/refresh", h.Refresh)
	r.POST("/api/auth/revoke", h.Revoke)
	r.GET("/api/auth/me", middleware.AuthRequired(), h.GetCurrentUser)
	r.POST("/api/auth/logout", middleware.AuthRequired(), h.Logout)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("bad response body %q: %v", w.Body.String(), err)
	}
	return envelope.Data
}

func registerAndLoginHTTP(t *testing.T, r *gin.Engine) (accessToken, refreshToken string) {
	t.Helper()
	creds := gin.H{"email": "pair@example.com", "password": "secret123"}

	if w := postJSON(t, r, "/api/auth/register", creds); w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", w.Code, w.Body.String())
	}

	w := postJSON(t, r, "/api/auth/login", creds)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}

	data := decodeData(t, w)
	accessToken, _ = data["access_token"].(string)
	refreshToken, _ = data["refresh_token"].(string)
	if accessToken == "" || refreshToken == "" {
		t.Fatalf("login response missing tokens: %v", data)
	}
	return accessToken, refreshToken
}

func TestRegisterEndpoint(t *testing.T) {
	r := newAuthRouter(t)

	w := postJSON(t, r, "/api/auth/register", gin.H{"email": "new@example.com", "password": "secret123"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if bytes.Contains(w.Body.Bytes(), []byte("secret123")) {
		t.Error("response must not leak the password")
	}

	// Same email again conflicts.
	w = postJSON(t, r, "/api/auth/register", gin.H{"email": "new@example.com", "password": "secret123"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d", w.Code)
	}

	// Validation failures are 400.
	w = postJSON(t, r, "/api/auth/register", gin.H{"email": "not-an-email", "password": "secret123"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid email status = %d", w.Code)
	}
}

func TestLoginEndpoint_WrongPassword(t *testing.T) {
	r := newAuthRouter(t)
	registerAndLoginHTTP(t, r)

	w := postJSON(t, r, "/api/auth/login", gin.H{"email": "pair@example.com", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}

func TestRefreshEndpoint_RotatesPair(t *testing.T) {
	r := newAuthRouter(t)
	access, refresh := registerAndLoginHTTP(t, r)

	w := postJSON(t, r, "/api/auth/refresh", gin.H{"access_token": access, "refresh_token": refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", w.Code, w.Body.String())
	}
	data := decodeData(t, w)
	if data["refresh_token"] == refresh {
		t.Error("refresh must rotate the refresh token")
	}

	// The consumed token is dead; replaying it is a 401.
	w = postJSON(t, r, "/api/auth/refresh", gin.H{"access_token": access, "refresh_token": refresh})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("replay status = %d", w.Code)
	}
}

func TestRefreshEndpoint_GarbageTokens(t *testing.T) {
	r := newAuthRouter(t)

	w := postJSON(t, r, "/api/auth/refresh", gin.H{"access_token": "garbage", "refresh_token": "garbage"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}

	w = postJSON(t, r, "/api/auth/refresh", gin.H{"access_token": "only-one"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field status = %d", w.Code)
	}
}

func TestRevokeEndpoint_Idempotent(t *testing.T) {
	r := newAuthRouter(t)
	access, refresh := registerAndLoginHTTP(t, r)

	w := postJSON(t, r, "/api/auth/revoke", gin.H{"refresh_token": refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("revoke status = %d", w.Code)
	}
	if revoked, _ := decodeData(t, w)["revoked"].(bool); !revoked {
		t.Error("first revoke should report revoked=true")
	}

	w = postJSON(t, r, "/api/auth/revoke", gin.H{"refresh_token": refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("second revoke status = %d", w.Code)
	}
	if revoked, _ := decodeData(t, w)["revoked"].(bool); revoked {
		t.Error("second revoke should report revoked=false")
	}

	// The revoked token no longer refreshes.
	w = postJSON(t, r, "/api/auth/refresh", gin.H{"access_token": access, "refresh_token": refresh})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("refresh after revoke status = %d", w.Code)
	}
}

func TestMeEndpoint(t *testing.T) {
	r := newAuthRouter(t)
	access, _ := registerAndLoginHTTP(t, r)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if email, _ := decodeData(t, w)["email"].(string); email != "pair@example.com" {
		t.Errorf("email = %q", email)
	}
}

func TestLogoutEndpoint_RevokesToken(t *testing.T) {
	r := newAuthRouter(t)
	access, refresh := registerAndLoginHTTP(t, r)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout",
		bytes.NewReader([]byte(fmt.Sprintf(`{"refresh_token":%q}`, refresh))))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+access)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}

	w2 := postJSON(t, r, "/api/auth/refresh", gin.H{"access_token": access, "refresh_token": refresh})
	if w2.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout status = %d", w2.Code)
	}
}
