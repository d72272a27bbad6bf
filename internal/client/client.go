// Package client is a Go client for the repayment tracker API. URLs and
// request bodies are resolved through the contract registry, so a request
// the server would reject with 400 fails here before it is sent.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"repaytrack/internal/contract"
	"repaytrack/internal/models"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("api error (status %d): %s (field %s)", e.Status, e.Message, e.Field)
	}
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to one API server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListBudgets returns every budget, oldest first.
func (c *Client) ListBudgets(ctx context.Context) ([]models.Budget, error) {
	var budgets []models.Budget
	if err := c.do(ctx, contract.ListBudgets, nil, nil, &budgets); err != nil {
		return nil, err
	}
	return budgets, nil
}

// GetBudget returns a budget with its payments.
func (c *Client) GetBudget(ctx context.Context, id uint) (*models.BudgetWithPayments, error) {
	var budget models.BudgetWithPayments
	if err := c.do(ctx, contract.GetBudget, idParam(id), nil, &budget); err != nil {
		return nil, err
	}
	return &budget, nil
}

// CreateBudget creates a budget.
func (c *Client) CreateBudget(ctx context.Context, req contract.CreateBudgetRequest) (*models.Budget, error) {
	var budget models.Budget
	if err := c.do(ctx, contract.CreateBudget, nil, &req, &budget); err != nil {
		return nil, err
	}
	return &budget, nil
}

// DeleteBudget deletes a budget and its payments.
func (c *Client) DeleteBudget(ctx context.Context, id uint) error {
	return c.do(ctx, contract.DeleteBudget, idParam(id), nil, nil)
}

// TogglePayment records whether an installment is paid.
func (c *Client) TogglePayment(ctx context.Context, budgetID uint, monthIndex int, isPaid bool) (*models.Payment, error) {
	req := contract.TogglePaymentRequest{MonthIndex: &monthIndex, IsPaid: &isPaid}
	var payment models.Payment
	if err := c.do(ctx, contract.TogglePayment, idParam(budgetID), &req, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Progress returns the repayment progress of a budget.
func (c *Client) Progress(ctx context.Context, budgetID uint) (*models.Progress, error) {
	var progress models.Progress
	if err := c.do(ctx, contract.GetProgress, idParam(budgetID), nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// ListProfiles returns the profiles that can log in.
func (c *Client) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	if err := c.do(ctx, contract.ListProfiles, nil, nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// Login logs in and, when the server issues one, keeps the token for
// subsequent requests.
func (c *Client) Login(ctx context.Context, profileID uint, password string) (*contract.LoginResponse, error) {
	req := contract.LoginRequest{ProfileID: profileID, Password: password}
	var resp contract.LoginResponse
	if err := c.do(ctx, contract.Login, nil, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Token != "" {
		c.token = resp.Token
	}
	return &resp, nil
}

// Logout ends the session and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, contract.Logout, nil, nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// CurrentProfile returns the logged-in profile id, nil when nobody is.
func (c *Client) CurrentProfile(ctx context.Context) (*uint, error) {
	var resp contract.CurrentProfileResponse
	if err := c.do(ctx, contract.CurrentProfile, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.ProfileID, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	var resp contract.HealthResponse
	return c.do(ctx, contract.Health, nil, nil, &resp)
}

func (c *Client) do(ctx context.Context, name string, params map[string]string, body, out interface{}) error {
	route := contract.MustLookup(name)

	var reader io.Reader
	if body != nil {
		if err := route.ValidateInput(body); err != nil {
			return fmt.Errorf("invalid %s request: %w", name, err)
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, route.Method, c.baseURL+route.URL(params), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var errBody contract.ValidationError
		if err := json.Unmarshal(data, &errBody); err == nil && errBody.Message != "" {
			apiErr.Message = errBody.Message
			apiErr.Field = errBody.Field
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func idParam(id uint) map[string]string {
	return map[string]string{"id": strconv.FormatUint(uint64(id), 10)}
}
