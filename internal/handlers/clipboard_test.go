package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/copyhere/server/internal/config"
	"github.com/copyhere/server/internal/middleware"
	"github.com/copyhere/server/internal/models"
	"github.com/copyhere/server/internal/services"
	"github.com/gin-gonic/gin"
)

type clipboardFixture struct {
	router   *gin.Engine
	access   string
	deviceID string
}

func newClipboardFixture(t *testing.T) *clipboardFixture {
	t.Helper()
	db := newHandlerDB(t)
	cfg := testConfig()

	authHandler := NewAuthHandler(db, cfg)
	clipboardHandler := NewClipboardHandler(db)
	deviceHandler := NewDeviceHandler(db)

	r := gin.New()
	r.POST("/api/auth/register", authHandler.Register)
	r.POST("/api/auth/login", authHandler.Login)

	protected := r.Group("/api", middleware.AuthRequired())
	protected.POST("/clipboard", clipboardHandler.Upload)
	protected.GET("/clipboard/latest", clipboardHandler.Latest)
	protected.GET("/clipboard/history", clipboardHandler.History)
	protected.DELETE("/clipboard/clear", clipboardHandler.Clear)
	protected.DELETE("/clipboard/:id", clipboardHandler.Delete)
	protected.POST("/clipboard/:id/restore", clipboardHandler.Restore)
	protected.PUT("/clipboard/:id/pin", clipboardHandler.SetPinned)
	protected.PUT("/clipboard/:id/tags", clipboardHandler.UpdateTags)
	protected.POST("/devices", deviceHandler.Register)
	protected.GET("/devices", deviceHandler.List)
	protected.DELETE("/devices/:id", deviceHandler.Delete)

	access, _ := registerAndLoginHTTP(t, r)

	w := authJSON(t, r, http.MethodPost, "/api/devices", access, gin.H{"name": "laptop", "type": "desktop"})
	if w.Code != http.StatusCreated {
		t.Fatalf("device register status = %d, body %s", w.Code, w.Body.String())
	}
	deviceID, _ := decodeData(t, w)["id"].(string)
	if deviceID == "" {
		t.Fatal("device response missing id")
	}

	return &clipboardFixture{router: r, access: access, deviceID: deviceID}
}

func authJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func (f *clipboardFixture) upload(t *testing.T, text string) string {
	t.Helper()
	w := authJSON(t, f.router, http.MethodPost, "/api/clipboard", f.access, gin.H{
		"device_id":    f.deviceID,
		"content_type": models.ContentTypeText,
		"content_text": text,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}
	id, _ := decodeData(t, w)["id"].(string)
	return id
}

func TestClipboardEndpoints_RequireAuth(t *testing.T) {
	f := newClipboardFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/clipboard/latest", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d without a token", w.Code)
	}
}

func TestClipboardUploadAndLatest(t *testing.T) {
	f := newClipboardFixture(t)

	w := authJSON(t, f.router, http.MethodGet, "/api/clipboard/latest", f.access, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("empty latest status = %d", w.Code)
	}

	f.upload(t, "first")
	time.Sleep(5 * time.Millisecond)
	f.upload(t, "second")

	w = authJSON(t, f.router, http.MethodGet, "/api/clipboard/latest", f.access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("latest status = %d", w.Code)
	}
	if text, _ := decodeData(t, w)["content_text"].(string); text != "second" {
		t.Errorf("latest content = %q", text)
	}
}

func TestClipboardUpload_PushesToHub(t *testing.T) {
	f := newClipboardFixture(t)

	// Route events straight to the hub, as a single-node deployment does.
	services.InitPushQueue(config.DefaultConfig())

	// The user id lives inside the access token; read it back from an
	// uploaded entry instead of decoding the JWT here.
	f.upload(t, "warm-up")
	w := authJSON(t, f.router, http.MethodGet, "/api/clipboard/latest", f.access, nil)
	userID, _ := decodeData(t, w)["user_id"].(string)
	if userID == "" {
		t.Fatal("latest response missing user_id")
	}

	events := services.GetSyncHub().Subscribe(userID, "test-client")
	defer services.GetSyncHub().Unsubscribe(userID, "test-client")

	f.upload(t, "broadcast me")

	select {
	case event := <-events:
		if event.Type != services.EventClipboardUpdated {
			t.Errorf("event type = %q", event.Type)
		}
		if event.Entry == nil || event.Entry.ContentText != "broadcast me" {
			t.Errorf("event entry = %+v", event.Entry)
		}
	case <-time.After(time.Second):
		t.Fatal("no sync event delivered for the upload")
	}
}

func TestClipboardDeleteAndClear(t *testing.T) {
	f := newClipboardFixture(t)

	id := f.upload(t, "doomed")
	f.upload(t, "also doomed")

	w := authJSON(t, f.router, http.MethodDelete, "/api/clipboard/"+id, f.access, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}

	w = authJSON(t, f.router, http.MethodDelete, "/api/clipboard/"+id, f.access, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d", w.Code)
	}

	w = authJSON(t, f.router, http.MethodDelete, "/api/clipboard/clear", f.access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	if deleted, _ := decodeData(t, w)["deleted"].(float64); deleted != 1 {
		t.Errorf("cleared = %v, expected 1", deleted)
	}
}

func TestClipboardPinAndTags(t *testing.T) {
	f := newClipboardFixture(t)
	id := f.upload(t, "keeper")

	w := authJSON(t, f.router, http.MethodPut, "/api/clipboard/"+id+"/pin", f.access, gin.H{"value": true})
	if w.Code != http.StatusOK {
		t.Fatalf("pin status = %d, body %s", w.Code, w.Body.String())
	}
	if pinned, _ := decodeData(t, w)["is_pinned"].(bool); !pinned {
		t.Error("entry should be pinned")
	}

	w = authJSON(t, f.router, http.MethodPut, "/api/clipboard/"+id+"/tags", f.access, gin.H{"tags": []string{"work"}})
	if w.Code != http.StatusOK {
		t.Fatalf("tags status = %d", w.Code)
	}

	// Missing flag value is a binding error, not a silent false.
	w = authJSON(t, f.router, http.MethodPut, "/api/clipboard/"+id+"/pin", f.access, gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing value status = %d", w.Code)
	}
}

func TestClipboardHistoryEndpoint(t *testing.T) {
	f := newClipboardFixture(t)

	f.upload(t, "one")
	time.Sleep(5 * time.Millisecond)
	f.upload(t, "two")

	w := authJSON(t, f.router, http.MethodGet, "/api/clipboard/history?take=1", f.access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}

	var envelope struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatal(err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("history size = %d, expected 1", len(envelope.Data))
	}
	if text, _ := envelope.Data[0]["content_text"].(string); text != "two" {
		t.Errorf("history[0] = %q, expected the newest entry", text)
	}
}

func TestDeviceEndpoints(t *testing.T) {
	f := newClipboardFixture(t)

	w := authJSON(t, f.router, http.MethodGet, "/api/devices", f.access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}

	var envelope struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatal(err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("device count = %d", len(envelope.Data))
	}

	w = authJSON(t, f.router, http.MethodPost, "/api/devices", f.access, gin.H{"name": "tv", "type": "fridge"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid device type status = %d", w.Code)
	}

	w = authJSON(t, f.router, http.MethodDelete, "/api/devices/"+f.deviceID, f.access, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("device delete status = %d", w.Code)
	}
}
