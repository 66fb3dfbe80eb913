package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagechat/internal/entities"
	"pagechat/internal/infrastructure"
	"pagechat/internal/kvstore"
	"pagechat/internal/repository"
	"pagechat/internal/usecases"
)

// stubBackend implements the conversation, catalog and AI ports in memory.
type stubBackend struct {
	records map[string]*entities.ConversationRecord
	nextID  int
}

func newStubBackend() *stubBackend {
	return &stubBackend{records: make(map[string]*entities.ConversationRecord), nextID: 10}
}

func (s *stubBackend) ListThreads(ctx context.Context, pageID string) ([]entities.ConversationRecord, error) {
	var out []entities.ConversationRecord
	for _, rec := range s.records {
		if rec.PageID == pageID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (s *stubBackend) ConversationByGuest(ctx context.Context, pageID, guestID string) (*entities.ConversationRecord, error) {
	rec, ok := s.records[guestID]
	if !ok || rec.PageID != pageID {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (s *stubBackend) CreateConversation(ctx context.Context, rec *entities.ConversationRecord, init bool) (int, error) {
	s.nextID++
	stored := *rec
	stored.ID = s.nextID
	s.records[rec.GuestID] = &stored
	return stored.ID, nil
}

func (s *stubBackend) UpdateMessages(ctx context.Context, id int, messages []entities.Message) error {
	for _, rec := range s.records {
		if rec.ID == id {
			rec.Messages = messages
		}
	}
	return nil
}

func (s *stubBackend) UpdateAIActive(ctx context.Context, id int, active bool) error {
	for _, rec := range s.records {
		if rec.ID == id {
			v := active
			rec.IsAIActive = &v
		}
	}
	return nil
}

func (s *stubBackend) DeleteConversation(ctx context.Context, id int) error {
	for guestID, rec := range s.records {
		if rec.ID == id {
			delete(s.records, guestID)
		}
	}
	return nil
}

func (s *stubBackend) PageBlocks(ctx context.Context, pageID string) ([]string, error) {
	return nil, nil
}

func (s *stubBackend) ContactInfo(ctx context.Context, pageID string) (*entities.ContactInfo, error) {
	return nil, nil
}

func (s *stubBackend) Collection(ctx context.Context, source, pageID string) ([]map[string]any, error) {
	return nil, nil
}

func (s *stubBackend) Entity(ctx context.Context, entityType, id string) (map[string]any, error) {
	return nil, nil
}

func (s *stubBackend) Complete(ctx context.Context, pageID string, req entities.AIRequest) (*entities.AIResponse, error) {
	return &entities.AIResponse{Success: true, Text: "How can I help?"}, nil
}

func (s *stubBackend) Feedback(ctx context.Context, pageID string, answerID int, positive bool) (bool, error) {
	return true, nil
}

const testSecret = "test-secret"

func newTestRouter() (*gin.Engine, *stubBackend) {
	gin.SetMode(gin.TestMode)
	backend := newStubBackend()
	sessions := usecases.NewSessionManager(kvstore.NewMemory(), backend, backend, backend, nil)

	r := gin.New()
	SetupRoutes(r, sessions, nil, NewMiddleware(testSecret), "http://widget.example.com")
	return r, backend
}

type snapshotEnvelope struct {
	GuestID  string            `json:"guestId"`
	Snapshot usecases.Snapshot `json:"snapshot"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path, guestID string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if guestID != "" {
		req.Header.Set("X-Guest-ID", guestID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuestWidgetFlow(t *testing.T) {
	r, backend := newTestRouter()

	// Open without a token mints one and lands in registration.
	w := doJSON(t, r, http.MethodPost, "/api/chat/page1/open", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var opened snapshotEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &opened))
	require.NotEmpty(t, opened.GuestID)
	assert.Equal(t, "registration", opened.Snapshot.State)

	// Register with the minted token.
	w = doJSON(t, r, http.MethodPost, "/api/chat/page1/register", opened.GuestID, gin.H{
		"name":  "Aye Chan",
		"phone": "0977123456",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var registered snapshotEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))
	assert.Equal(t, "connected", registered.Snapshot.State)

	// Send a message; the stub AI answers.
	w = doJSON(t, r, http.MethodPost, "/api/chat/page1/messages", opened.GuestID, gin.H{
		"text": "hello",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var sent snapshotEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	require.Len(t, sent.Snapshot.Messages, 2)
	assert.Equal(t, "hello", sent.Snapshot.Messages[0].Text)
	assert.Equal(t, "How can I help?", sent.Snapshot.Messages[1].Text)

	// The record landed on the backend.
	rec := backend.records[opened.GuestID]
	require.NotNil(t, rec)
	assert.Equal(t, "Aye Chan", rec.GuestName)
}

func TestGuestRoutesRejectBadIdentifiers(t *testing.T) {
	r, _ := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/chat/bad%20page/open", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/chat/page1/messages", "", gin.H{"text": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "guest id required outside open")

	w = doJSON(t, r, http.MethodPost, "/api/chat/page1/messages", "not-a-guest-token", gin.H{"text": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterValidationSurfaceErrors(t *testing.T) {
	r, _ := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/chat/page1/open", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var opened snapshotEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &opened))

	w = doJSON(t, r, http.MethodPost, "/api/chat/page1/register", opened.GuestID, gin.H{
		"name":  "A",
		"phone": "123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func adminToken(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  float64(1),
		"username": "root",
		"role":     role,
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestAdminRoutesRequireAuthAndRole(t *testing.T) {
	r, backend := newTestRouter()
	backend.records["guest_aaa"] = &entities.ConversationRecord{
		ID: 5, GuestID: "guest_aaa", PageID: "page1",
		Messages: []entities.Message{{ID: "1", Text: "hi"}},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/page1/threads", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/page1/threads", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "agent"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/page1/threads", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp snapshotEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Snapshot.Threads, 1)
	assert.Equal(t, "guest_aaa", resp.Snapshot.Threads[0].GuestID)
}

func TestAgentRegistrationRequiresAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	client, err := infrastructure.NewSQLiteClient(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	auth := usecases.NewAuthUsecase(repository.NewUserRepository(client.DB), testSecret)

	backend := newStubBackend()
	sessions := usecases.NewSessionManager(kvstore.NewMemory(), backend, backend, backend, nil)
	r := gin.New()
	SetupRoutes(r, sessions, auth, NewMiddleware(testSecret), "http://widget.example.com")

	body := map[string]string{"username": "mgmg", "password": "hunter22pw"}

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "no token")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "agent"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "agents cannot provision accounts")

	req = httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	// The provisioned agent can log in.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Duplicates and weak passwords are rejected.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, map[string]string{"username": "other", "password": "short"}))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "admin"))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func jsonBody(t *testing.T, payload any) *bytes.Buffer {
	t.Helper()
	var body bytes.Buffer
	require.NoError(t, json.NewEncoder(&body).Encode(payload))
	return &body
}

func TestWidgetQRServesPNG(t *testing.T) {
	r, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/widget/page1/qr", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Greater(t, w.Body.Len(), 100)
}

func TestSecurityHeadersApplied(t *testing.T) {
	r, _ := newTestRouter()

	w := doJSON(t, r, http.MethodPost, "/api/chat/page1/open", "", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
