package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"repaytrack/internal/auth"
	"repaytrack/internal/logger"
	"repaytrack/internal/middleware"
	"repaytrack/internal/models"
	"repaytrack/internal/testutil"
	"repaytrack/internal/validator"
)

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	return r
}

func setupAuthRouter(handler *AuthHandler) *gin.Engine {
	r := newTestRouter()
	r.GET("/api/auth/profiles", handler.ListProfiles)
	r.POST("/api/auth/login", handler.Login)
	r.POST("/api/auth/logout", handler.Logout)
	r.GET("/api/auth/current", handler.Current)
	r.GET("/api/health", Health)
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func parseJSONArray(t *testing.T, rec *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	var result []interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON array response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorMessage(t *testing.T, result map[string]interface{}, message string) {
	t.Helper()
	if result["message"] != message {
		t.Errorf("expected error message %q, got %v", message, result["message"])
	}
}

// --- mock provider ---

type mockProvider struct {
	loginFn   func(ctx context.Context, profileID uint, password string) (*auth.Session, error)
	logoutFn  func(ctx context.Context) error
	currentFn func(ctx context.Context) (*uint, error)
}

func (m *mockProvider) Login(ctx context.Context, profileID uint, password string) (*auth.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, profileID, password)
	}
	return &auth.Session{ProfileID: profileID}, nil
}

func (m *mockProvider) Logout(ctx context.Context) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx)
	}
	return nil
}

func (m *mockProvider) Authenticate(context.Context, string) (uint, error) {
	return models.DefaultProfileID, nil
}

func (m *mockProvider) Current(ctx context.Context) (*uint, error) {
	if m.currentFn != nil {
		return m.currentFn(ctx)
	}
	return nil, nil
}

func (m *mockProvider) Enabled() bool { return true }

var _ auth.Provider = (*mockProvider)(nil)

func TestAuthHandler_ListProfiles(t *testing.T) {
	store := testutil.NewTestJSONStore(t)
	testutil.CreateTestProfileWithName(t, store, "alice")
	testutil.CreateTestProfileWithName(t, store, "bob")
	r := setupAuthRouter(NewAuthHandler(&mockProvider{}, store))

	rec := doRequest(r, http.MethodGet, "/api/auth/profiles", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	profiles := parseJSONArray(t, rec)
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	first := profiles[0].(map[string]interface{})
	if first["name"] != "alice" {
		t.Errorf("expected alice first, got %v", first["name"])
	}
	if _, ok := first["passwordHash"]; ok {
		t.Error("password hash must never be exposed")
	}
	if len(first) != 2 {
		t.Errorf("expected only id and name, got %v", first)
	}
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("returns token on success", func(t *testing.T) {
		store := testutil.NewTestJSONStore(t)
		profile := testutil.CreateTestProfile(t, store)
		provider := auth.NewProfileProvider(store, []byte("secret"), time.Hour)
		r := setupAuthRouter(NewAuthHandler(provider, store))

		rec := doRequest(r, http.MethodPost, "/api/auth/login",
			`{"profileId":`+jsonNumber(profile.ID)+`,"password":"`+testutil.TestPassword+`"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		result := parseJSON(t, rec)
		if result["success"] != true || result["profileId"].(float64) != float64(profile.ID) {
			t.Errorf("unexpected response %v", result)
		}
		if token, _ := result["token"].(string); token == "" {
			t.Error("expected a token")
		}

		rec = doRequest(r, http.MethodGet, "/api/auth/current", "")
		if current := parseJSON(t, rec); current["profileId"].(float64) != float64(profile.ID) {
			t.Errorf("expected current profile %d, got %v", profile.ID, current["profileId"])
		}
	})

	t.Run("returns 401 on wrong password", func(t *testing.T) {
		store := testutil.NewTestJSONStore(t)
		profile := testutil.CreateTestProfile(t, store)
		provider := auth.NewProfileProvider(store, []byte("secret"), time.Hour)
		r := setupAuthRouter(NewAuthHandler(provider, store))

		rec := doRequest(r, http.MethodPost, "/api/auth/login",
			`{"profileId":`+jsonNumber(profile.ID)+`,"password":"nope"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		assertErrorMessage(t, parseJSON(t, rec), "Invalid password")
	})

	t.Run("returns 400 on missing profile", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockProvider{}, testutil.NewTestJSONStore(t)))

		rec := doRequest(r, http.MethodPost, "/api/auth/login", `{"password":"x"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if result := parseJSON(t, rec); result["field"] != "profileId" {
			t.Errorf("expected field profileId, got %v", result["field"])
		}
	})

	t.Run("omits token when authentication is disabled", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(auth.NoopProvider{}, testutil.NewTestJSONStore(t)))

		rec := doRequest(r, http.MethodPost, "/api/auth/login", `{"profileId":1,"password":""}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if _, ok := parseJSON(t, rec)["token"]; ok {
			t.Error("expected no token")
		}
	})

	t.Run("returns 500 on provider failure", func(t *testing.T) {
		provider := &mockProvider{
			loginFn: func(context.Context, uint, string) (*auth.Session, error) {
				return nil, errors.New("write data file: read-only file system")
			},
		}
		r := setupAuthRouter(NewAuthHandler(provider, testutil.NewTestJSONStore(t)))

		rec := doRequest(r, http.MethodPost, "/api/auth/login", `{"profileId":1,"password":"x"}`)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		assertErrorMessage(t, parseJSON(t, rec), "An internal error occurred")
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	loggedOut := false
	provider := &mockProvider{
		logoutFn: func(context.Context) error {
			loggedOut = true
			return nil
		},
	}
	r := setupAuthRouter(NewAuthHandler(provider, testutil.NewTestJSONStore(t)))

	rec := doRequest(r, http.MethodPost, "/api/auth/logout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if parseJSON(t, rec)["success"] != true {
		t.Error("expected success")
	}
	if !loggedOut {
		t.Error("expected provider logout")
	}
}

func TestAuthHandler_Current(t *testing.T) {
	t.Run("null when nobody is logged in", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(&mockProvider{}, testutil.NewTestJSONStore(t)))

		rec := doRequest(r, http.MethodGet, "/api/auth/current", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Body.String() != `{"profileId":null}` {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("default profile when authentication is disabled", func(t *testing.T) {
		r := setupAuthRouter(NewAuthHandler(auth.NoopProvider{}, testutil.NewTestJSONStore(t)))

		rec := doRequest(r, http.MethodGet, "/api/auth/current", "")
		if parseJSON(t, rec)["profileId"].(float64) != float64(models.DefaultProfileID) {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})
}

func TestHealth(t *testing.T) {
	r := setupAuthRouter(NewAuthHandler(&mockProvider{}, testutil.NewTestJSONStore(t)))

	rec := doRequest(r, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if parseJSON(t, rec)["status"] != "ok" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
