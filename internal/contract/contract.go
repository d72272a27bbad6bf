// Package contract is the single description of the HTTP API shared by the
// server and the Go client: every route's method, path template, request
// body and possible responses. The router is built from Routes and the
// client resolves URLs and validates bodies through it, so the two cannot
// drift apart.
package contract

import (
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	playground "github.com/go-playground/validator/v10"

	"repaytrack/internal/models"
	"repaytrack/internal/validator"
)

// Route names.
const (
	ListBudgets   = "budgets.list"
	GetBudget     = "budgets.get"
	CreateBudget  = "budgets.create"
	DeleteBudget  = "budgets.delete"
	TogglePayment = "budgets.togglePayment"
	GetProgress   = "budgets.progress"

	ListProfiles   = "auth.profiles"
	Login          = "auth.login"
	Logout         = "auth.logout"
	CurrentProfile = "auth.current"

	Health = "health"
)

// Route describes one endpoint.
type Route struct {
	Name    string
	Method  string
	Path    string
	Summary string
	Tag     string
	// Public routes are reachable without a session when authentication is enabled.
	Public bool
	// Input is the zero value of the request body, nil when the route takes none.
	Input interface{}
	// Responses maps each status code to the zero value of its body; nil means empty.
	Responses map[int]interface{}
}

// CreateBudgetRequest is the body of POST /api/budgets.
type CreateBudgetRequest struct {
	Name          string `json:"name" binding:"required"`
	TotalAmount   int64  `json:"totalAmount" binding:"gt=0"`
	MonthlyAmount int64  `json:"monthlyAmount" binding:"gt=0"`
	StartDate     string `json:"startDate" binding:"required,isodate"`
}

func init() {
	validator.RegisterStructRule(validateInstallments, "maxinstallments",
		"{0} must be repayable in at most {1} monthly installments", CreateBudgetRequest{})
}

// validateInstallments rejects budgets whose schedule exceeds
// models.MaxInstallments.
func validateInstallments(sl playground.StructLevel) {
	r, ok := sl.Current().Interface().(CreateBudgetRequest)
	if !ok || r.TotalAmount <= 0 || r.MonthlyAmount <= 0 {
		return
	}
	b := models.Budget{TotalAmount: r.TotalAmount, MonthlyAmount: r.MonthlyAmount}
	if b.TotalMonths() > models.MaxInstallments {
		sl.ReportError(r.TotalAmount, "totalAmount", "TotalAmount", "maxinstallments", strconv.Itoa(models.MaxInstallments))
	}
}

// ToNewBudget converts a validated request into storage input.
func (r CreateBudgetRequest) ToNewBudget() (models.NewBudget, error) {
	start, err := models.ParseDate(r.StartDate)
	if err != nil {
		return models.NewBudget{}, err
	}
	return models.NewBudget{
		Name:          r.Name,
		TotalAmount:   r.TotalAmount,
		MonthlyAmount: r.MonthlyAmount,
		StartDate:     start,
	}, nil
}

// TogglePaymentRequest is the body of POST /api/budgets/:id/payments.
// Pointers distinguish a missing field from its zero value.
type TogglePaymentRequest struct {
	MonthIndex *int  `json:"monthIndex" binding:"required,min=0,max=2147483647"`
	IsPaid     *bool `json:"isPaid" binding:"required"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	ProfileID uint   `json:"profileId" binding:"required"`
	Password  string `json:"password"`
}

// LoginResponse is returned by a successful login. Token is empty when
// authentication is disabled.
type LoginResponse struct {
	Success   bool   `json:"success"`
	ProfileID uint   `json:"profileId"`
	Token     string `json:"token,omitempty"`
}

// LogoutResponse is returned by logout.
type LogoutResponse struct {
	Success bool `json:"success"`
}

// CurrentProfileResponse reports the logged-in profile, null when none.
type CurrentProfileResponse struct {
	ProfileID *uint `json:"profileId"`
}

// HealthResponse is returned by the health check.
type HealthResponse struct {
	Status string `json:"status"`
}

// ValidationError is the 400 body naming the first invalid field.
type ValidationError struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// NotFoundError is the 404 body.
type NotFoundError struct {
	Message string `json:"message"`
}

// UnauthorizedError is the 401 body.
type UnauthorizedError struct {
	Message string `json:"message"`
}

// InternalError is the 500 body.
type InternalError struct {
	Message string `json:"message"`
}

// Routes is the API registry.
var Routes = []Route{
	{
		Name: ListBudgets, Method: http.MethodGet, Path: "/api/budgets",
		Summary: "List budgets", Tag: "budgets",
		Responses: map[int]interface{}{
			http.StatusOK:                  []models.Budget{},
			http.StatusInternalServerError: InternalError{},
		},
	},
	{
		Name: GetBudget, Method: http.MethodGet, Path: "/api/budgets/:id",
		Summary: "Get a budget with its payments", Tag: "budgets",
		Responses: map[int]interface{}{
			http.StatusOK:                  models.BudgetWithPayments{},
			http.StatusNotFound:            NotFoundError{},
			http.StatusInternalServerError: InternalError{},
		},
	},
	{
		Name: CreateBudget, Method: http.MethodPost, Path: "/api/budgets",
		Summary: "Create a budget", Tag: "budgets",
		Input: CreateBudgetRequest{},
		Responses: map[int]interface{}{
			http.StatusCreated:             models.Budget{},
			http.StatusBadRequest:          ValidationError{},
			http.StatusInternalServerError: InternalError{},
		},
	},
	{
		Name: DeleteBudget, Method: http.MethodDelete, Path: "/api/budgets/:id",
		Summary: "Delete a budget and its payments", Tag: "budgets",
		Responses: map[int]interface{}{
			http.StatusNoContent:           nil,
			http.StatusNotFound:            NotFoundError{},
			http.StatusInternalServerError: InternalError{},
		},
	},
	{
		Name: TogglePayment, Method: http.MethodPost, Path: "/api/budgets/:id/payments",
		Summary: "Set the paid flag of an installment", Tag: "budgets",
		Input: TogglePaymentRequest{},
		Responses: map[int]interface{}{
			http.StatusOK:                  models.Payment{},
			http.StatusBadRequest:          ValidationError{},
			http.StatusNotFound:            NotFoundError{},
			http.StatusInternalServerError: InternalError{},
		},
	},
	{
		Name: GetProgress, Method: http.MethodGet, Path: "/api/budgets/:id/progress",
		Summary: "Get repayment progress and schedule", Tag: "budgets",
		Responses: map[int]interface{}{
			http.StatusOK:                  models.Progress{},
			http.StatusNotFound:            NotFoundError{},
			http.StatusInternalServerError: InternalError{},
		},
	},
	{
		Name: ListProfiles, Method: http.MethodGet, Path: "/api/auth/profiles",
		Summary: "List profiles", Tag: "auth", Public: true,
		Responses: map[int]interface{}{
			http.StatusOK:                  []models.Profile{},
			http.StatusInternalServerError: InternalError{},
		},
	},
	{
		Name: Login, Method: http.MethodPost, Path: "/api/auth/login",
		Summary: "Log in to a profile", Tag: "auth", Public: true,
		Input: LoginRequest{},
		Responses: map[int]interface{}{
			http.StatusOK:                  LoginResponse{},
			http.StatusBadRequest:          ValidationError{},
			http.StatusUnauthorized:        UnauthorizedError{},
			http.StatusInternalServerError: InternalError{},
		},
	},
	{
		Name: Logout, Method: http.MethodPost, Path: "/api/auth/logout",
		Summary: "Log out", Tag: "auth", Public: true,
		Responses: map[int]interface{}{
			http.StatusOK:                  LogoutResponse{},
			http.StatusInternalServerError: InternalError{},
		},
	},
	{
		Name: CurrentProfile, Method: http.MethodGet, Path: "/api/auth/current",
		Summary: "Get the logged-in profile", Tag: "auth", Public: true,
		Responses: map[int]interface{}{
			http.StatusOK:                  CurrentProfileResponse{},
			http.StatusInternalServerError: InternalError{},
		},
	},
	{
		Name: Health, Method: http.MethodGet, Path: "/api/health",
		Summary: "Health check", Tag: "system", Public: true,
		Responses: map[int]interface{}{
			http.StatusOK: HealthResponse{},
		},
	},
}

// Lookup returns the route with the given name.
func Lookup(name string) (Route, bool) {
	for _, r := range Routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) Route {
	r, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("contract: unknown route %q", name))
	}
	return r
}

// BuildURL substitutes :name tokens in path with params. Unknown params are
// ignored and tokens without a param are left in place.
func BuildURL(path string, params map[string]string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, ":") {
			continue
		}
		if v, ok := params[seg[1:]]; ok {
			segments[i] = v
		}
	}
	return strings.Join(segments, "/")
}

// URL returns the route's path with params substituted.
func (r Route) URL(params map[string]string) string {
	return BuildURL(r.Path, params)
}

// ValidateInput checks that body has the route's input type and satisfies
// its validation rules.
func (r Route) ValidateInput(body interface{}) error {
	if r.Input == nil {
		if body != nil {
			return fmt.Errorf("route %s takes no request body", r.Name)
		}
		return nil
	}

	got := reflect.TypeOf(body)
	if got != nil && got.Kind() == reflect.Ptr {
		got = got.Elem()
	}
	if want := reflect.TypeOf(r.Input); got != want {
		return fmt.Errorf("route %s expects %s, got %v", r.Name, want, got)
	}
	return validator.Struct(body)
}

// Response returns the declared body for status, and whether the status is
// declared at all.
func (r Route) Response(status int) (interface{}, bool) {
	body, ok := r.Responses[status]
	return body, ok
}

// SuccessStatus returns the lowest declared 2xx status.
func (r Route) SuccessStatus() int {
	best := 0
	for status := range r.Responses {
		if status >= 200 && status < 300 && (best == 0 || status < best) {
			best = status
		}
	}
	return best
}
