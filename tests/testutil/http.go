package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/raidroom-api/internal/services"
	"github.com/dimitrije/raidroom-api/pkg/dto"
	"github.com/google/uuid"
)

const apiPrefix = "/api/v1"

// TestJWTService creates a JWTService with test configuration
func TestJWTService() *services.JWTService {
	return services.NewJWTService(
		"test-secret-key-for-testing-only",
		"raidroom-test",
		15*time.Minute,
	)
}

// GenerateTestToken generates a valid JWT token for testing
func GenerateTestToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := TestJWTService().GenerateAccessToken(userID)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// AuthHeader returns an Authorization header value with a Bearer token
func AuthHeader(token string) string {
	return "Bearer " + token
}

// RoomAPI drives an in-process room API handler.
type RoomAPI struct {
	t       *testing.T
	handler http.Handler
}

func NewRoomAPI(t *testing.T, handler http.Handler) *RoomAPI {
	return &RoomAPI{t: t, handler: handler}
}

// Health calls the unauthenticated health route.
func (a *RoomAPI) Health() *httptest.ResponseRecorder {
	return a.serve(http.MethodGet, "/health", nil, "")
}

// As returns a caller whose requests carry a token for userID.
func (a *RoomAPI) As(userID uuid.UUID) *Caller {
	return &Caller{api: a, auth: AuthHeader(GenerateTestToken(a.t, userID))}
}

// Caller issues authenticated requests relative to /api/v1.
type Caller struct {
	api  *RoomAPI
	auth string
}

func (c *Caller) Get(path string) *httptest.ResponseRecorder {
	return c.api.serve(http.MethodGet, path, nil, c.auth)
}

func (c *Caller) Post(path string, body any) *httptest.ResponseRecorder {
	return c.api.serve(http.MethodPost, path, body, c.auth)
}

// RoomAction posts to /rooms/:roomId/<action>.
func (c *Caller) RoomAction(roomID uuid.UUID, action string, body any) *httptest.ResponseRecorder {
	return c.Post("/rooms/"+roomID.String()+"/"+action, body)
}

func (a *RoomAPI) serve(method, path string, body any, auth string) *httptest.ResponseRecorder {
	a.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("failed to marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, apiPrefix+path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// Decode checks the status and, when v is non-nil, decodes the body into it.
func Decode(t *testing.T, rec *httptest.ResponseRecorder, status int, v any) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d. Body: %s", status, rec.Code, rec.Body.String())
	}
	if v == nil {
		return
	}
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to parse response JSON: %v", err)
	}
}

// ErrorCode checks the status and returns the error envelope's code.
func ErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int) string {
	t.Helper()
	var body dto.ErrorResponse
	Decode(t, rec, status, &body)
	return body.Code
}
