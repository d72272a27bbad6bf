package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"repaytrack/internal/auth"
	"repaytrack/internal/config"
	"repaytrack/internal/logger"
	"repaytrack/internal/storage"
	"repaytrack/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newTestServer(t *testing.T, store storage.Store, provider auth.Provider) *testServer {
	t.Helper()
	router, err := New(Deps{Config: &config.Config{CORSOrigin: "*"}, Store: store, Provider: provider})
	testutil.AssertNoError(t, err)
	return &testServer{t: t, router: router}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestBudgetLifecycle(t *testing.T) {
	backends := map[string]func(t *testing.T) storage.Store{
		"json": func(t *testing.T) storage.Store { return testutil.NewTestJSONStore(t) },
		"sql":  func(t *testing.T) storage.Store { return testutil.NewTestSQLStore(t) },
	}

	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t, newStore(t), auth.NoopProvider{})

			rec := s.do(http.MethodPost, "/api/budgets",
				`{"name":"Car","totalAmount":1200,"monthlyAmount":300,"startDate":"2024-01-01"}`)
			expectStatus(t, rec, http.StatusCreated)
			created := decode(t, rec)
			id, ok := created["id"].(float64)
			if !ok || id == 0 {
				t.Fatalf("expected an assigned id, got %v", created["id"])
			}
			budgetPath := fmt.Sprintf("/api/budgets/%d", int(id))

			rec = s.do(http.MethodGet, "/api/budgets", "")
			expectStatus(t, rec, http.StatusOK)
			var list []map[string]interface{}
			testutil.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
			if len(list) != 1 || list[0]["name"] != "Car" {
				t.Fatalf("unexpected list %v", list)
			}

			rec = s.do(http.MethodGet, budgetPath, "")
			expectStatus(t, rec, http.StatusOK)
			payments, ok := decode(t, rec)["payments"].([]interface{})
			if !ok || len(payments) != 0 {
				t.Fatalf("expected empty payments array, got %s", rec.Body.String())
			}

			rec = s.do(http.MethodPost, budgetPath+"/payments", `{"monthIndex":0,"isPaid":true}`)
			expectStatus(t, rec, http.StatusOK)
			if payment := decode(t, rec); payment["isPaid"] != true || payment["monthIndex"].(float64) != 0 {
				t.Fatalf("unexpected payment %v", payment)
			}

			rec = s.do(http.MethodGet, budgetPath, "")
			expectStatus(t, rec, http.StatusOK)
			if payments := decode(t, rec)["payments"].([]interface{}); len(payments) != 1 {
				t.Fatalf("expected one payment, got %d", len(payments))
			}

			rec = s.do(http.MethodGet, budgetPath+"/progress", "")
			expectStatus(t, rec, http.StatusOK)
			progress := decode(t, rec)
			if progress["totalMonths"].(float64) != 4 || progress["paidMonths"].(float64) != 1 || progress["percentage"].(float64) != 25 {
				t.Fatalf("unexpected progress %v", progress)
			}

			rec = s.do(http.MethodDelete, budgetPath, "")
			expectStatus(t, rec, http.StatusNoContent)
			if rec.Body.Len() != 0 {
				t.Errorf("expected empty body, got %s", rec.Body.String())
			}

			rec = s.do(http.MethodGet, budgetPath, "")
			expectStatus(t, rec, http.StatusNotFound)
			if decode(t, rec)["message"] != "Budget not found" {
				t.Errorf("unexpected body %s", rec.Body.String())
			}
		})
	}
}

func TestCreateBudgetRejectsInvalidInput(t *testing.T) {
	store := testutil.NewTestJSONStore(t)
	s := newTestServer(t, store, auth.NoopProvider{})

	bodies := map[string]string{
		"zero_total":       `{"name":"Car","totalAmount":0,"monthlyAmount":300,"startDate":"2024-01-01"}`,
		"negative_monthly": `{"name":"Car","totalAmount":1200,"monthlyAmount":-5,"startDate":"2024-01-01"}`,
		"bad_date":         `{"name":"Car","totalAmount":1200,"monthlyAmount":300,"startDate":"01/01/2024"}`,
		"missing_name":     `{"totalAmount":1200,"monthlyAmount":300,"startDate":"2024-01-01"}`,
		"not_json":         `{`,
		"too_many_months":  `{"name":"Car","totalAmount":9223372036854775807,"monthlyAmount":2,"startDate":"2024-01-01"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/budgets", body)
			expectStatus(t, rec, http.StatusBadRequest)
			if msg, _ := decode(t, rec)["message"].(string); msg == "" {
				t.Error("expected an error message")
			}
		})
	}

	budgets, err := store.ListBudgets(context.Background())
	testutil.AssertNoError(t, err)
	if len(budgets) != 0 {
		t.Errorf("rejected requests must not reach storage, found %d budgets", len(budgets))
	}
}

func TestTogglePaymentRejectsMonthBeyondInt32(t *testing.T) {
	store := testutil.NewTestJSONStore(t)
	budget := testutil.CreateTestBudget(t, store)
	s := newTestServer(t, store, auth.NoopProvider{})

	rec := s.do(http.MethodPost, fmt.Sprintf("/api/budgets/%d/payments", budget.ID), `{"monthIndex":3000000000,"isPaid":true}`)
	expectStatus(t, rec, http.StatusBadRequest)
	if decode(t, rec)["field"] != "monthIndex" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	payments, err := store.ListPayments(context.Background(), budget.ID)
	testutil.AssertNoError(t, err)
	if len(payments) != 0 {
		t.Errorf("rejected toggle must not reach storage, found %d payments", len(payments))
	}
}

func TestUnknownBudgetIDs(t *testing.T) {
	s := newTestServer(t, testutil.NewTestJSONStore(t), auth.NoopProvider{})

	for _, path := range []string{"/api/budgets/999", "/api/budgets/abc", "/api/budgets/0", "/api/budgets/999/progress"} {
		rec := s.do(http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", path, rec.Code)
		}
	}

	rec := s.do(http.MethodPost, "/api/budgets/999/payments", `{"monthIndex":0,"isPaid":true}`)
	expectStatus(t, rec, http.StatusNotFound)

	rec = s.do(http.MethodDelete, "/api/budgets/999", "")
	expectStatus(t, rec, http.StatusNotFound)
}

func TestProfileAuthentication(t *testing.T) {
	store := testutil.NewTestJSONStore(t)
	profile := testutil.CreateTestProfile(t, store)
	s := newTestServer(t, store, auth.NewProfileProvider(store, []byte("test-secret"), time.Hour))

	rec := s.do(http.MethodGet, "/api/budgets", "")
	expectStatus(t, rec, http.StatusUnauthorized)
	if decode(t, rec)["message"] != "Authorization header is required" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	s.token = "garbage"
	rec = s.do(http.MethodGet, "/api/budgets", "")
	expectStatus(t, rec, http.StatusUnauthorized)
	s.token = ""

	rec = s.do(http.MethodGet, "/api/auth/profiles", "")
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(http.MethodPost, "/api/auth/login",
		fmt.Sprintf(`{"profileId":%d,"password":%q}`, profile.ID, testutil.TestPassword))
	expectStatus(t, rec, http.StatusOK)
	token, _ := decode(t, rec)["token"].(string)
	if token == "" {
		t.Fatal("expected a token")
	}

	s.token = token
	rec = s.do(http.MethodGet, "/api/budgets", "")
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "[]" {
		t.Errorf("expected empty list, got %s", rec.Body.String())
	}
}

func TestMiddleware(t *testing.T) {
	s := newTestServer(t, testutil.NewTestJSONStore(t), auth.NoopProvider{})

	t.Run("cors preflight", func(t *testing.T) {
		rec := s.do(http.MethodOptions, "/api/budgets", "")
		expectStatus(t, rec, http.StatusNoContent)
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("missing CORS header: %v", rec.Header())
		}
	})

	t.Run("request id", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/health", "")
		expectStatus(t, rec, http.StatusOK)
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("expected a request id header")
		}
	})

	t.Run("swagger", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/swagger/doc.json", "")
		expectStatus(t, rec, http.StatusOK)
		doc := decode(t, rec)
		paths, ok := doc["paths"].(map[string]interface{})
		if !ok {
			t.Fatalf("expected paths in document, got %v", doc)
		}
		if _, ok := paths["/api/budgets/{id}/payments"]; !ok {
			t.Errorf("expected payments route in document, got %v", paths)
		}
	})
}

func TestServe(t *testing.T) {
	t.Run("stops when the context is cancelled", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		testutil.AssertNoError(t, err)

		s := newTestServer(t, testutil.NewTestJSONStore(t), auth.NoopProvider{})
		ctx, cancel := context.WithCancel(context.Background())

		backgroundStopped := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- serve(ctx, ln, s.router, func(ctx context.Context) error {
				<-ctx.Done()
				close(backgroundStopped)
				return nil
			})
		}()

		resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
		testutil.AssertNoError(t, err)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}

		cancel()
		select {
		case err := <-done:
			testutil.AssertNoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
		select {
		case <-backgroundStopped:
		default:
			t.Error("expected background task to be stopped")
		}
	})

	t.Run("stops when a background task fails", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		testutil.AssertNoError(t, err)

		boom := errors.New("watcher failed")
		err = serve(context.Background(), ln, http.NotFoundHandler(), func(context.Context) error {
			return boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected background error, got %v", err)
		}
	})
}
