package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"repairshop-api/internal/authn"
	"repairshop-api/internal/clock"
	"repairshop-api/internal/employee"
	"repairshop-api/internal/pinhash"
	"repairshop-api/internal/ratelimit"
	"repairshop-api/internal/session"
)

var testParams = pinhash.Params{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type fixture struct {
	router    http.Handler
	clk       *clock.FakeClock
	employees *employee.Service
	empID     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := clock.Fake(time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC))
	hasher := pinhash.NewHasher(testParams)

	sessions := session.NewManager(session.NewMemoryStore(), session.DefaultLifetimePolicy(), clk)
	repo := employee.NewMemoryRepository()
	employees := employee.NewService(repo, hasher, sessions, clk)

	e, err := employees.Create(context.Background(), "Rosa", "4242")
	if err != nil {
		t.Fatalf("seed employee: %v", err)
	}

	adminDigest, err := hasher.Hash("1701")
	if err != nil {
		t.Fatalf("hash admin pin: %v", err)
	}
	creds := employee.NewCredentials(repo, employee.StaticAdminDigest(adminDigest))

	limiter := ratelimit.NewLimiter(5, time.Minute, 4, clk)
	auth := authn.NewRequestAuthenticator(limiter, creds, hasher, sessions, nil)

	middleware := NewAuthMiddleware(auth)
	router := NewRouter(
		NewAuthHandler(auth),
		NewEmployeeHandler(employees),
		middleware,
		zap.NewNop(),
	)

	return &fixture{router: router, clk: clk, employees: employees, empID: e.ID}
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	r := httptest.NewRequest(method, path, &buf)
	r.RemoteAddr = "192.0.2.10:50000"
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func (f *fixture) login(t *testing.T, path string, body interface{}) string {
	t.Helper()

	w := f.do(t, http.MethodPost, path, "", body)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Data.Token == "" {
		t.Fatal("login response has no token")
	}
	return resp.Data.Token
}

func TestAdminLoginAndIntrospection(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "/api/v1/auth/admin/login", map[string]string{"pin": "1701"})

	w := f.do(t, http.MethodGet, "/api/v1/auth/session", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("session status = %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte(token)) {
		t.Error("session introspection leaked the bearer token")
	}
}

func TestWrongPINIs401(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/auth/admin/login", "", map[string]string{"pin": "0000"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestUnknownAndWrongPINLookAlike(t *testing.T) {
	f := newFixture(t)

	wrong := f.do(t, http.MethodPost, "/api/v1/auth/employee/login", "",
		map[string]string{"employee_id": f.empID, "pin": "0000"})
	unknown := f.do(t, http.MethodPost, "/api/v1/auth/employee/login", "",
		map[string]string{"employee_id": "no-such-id", "pin": "4242"})

	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("codes = %d, %d, want 401 for both", wrong.Code, unknown.Code)
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Errorf("rejection bodies differ: %q vs %q", wrong.Body.String(), unknown.Body.String())
	}
}

func TestRateLimitSets429AndRetryAfter(t *testing.T) {
	f := newFixture(t)

	body := map[string]string{"employee_id": f.empID, "pin": "0000"}
	for i := 0; i < 2; i++ {
		f.do(t, http.MethodPost, "/api/v1/auth/employee/login", "", body)
	}

	w := f.do(t, http.MethodPost, "/api/v1/auth/employee/login", "", body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "5" {
		t.Errorf("Retry-After = %q, want 5", got)
	}
}

func TestExpiredSessionIs401(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "/api/v1/auth/admin/login", map[string]string{"pin": "1701"})

	f.clk.Advance(31 * time.Minute)

	w := f.do(t, http.MethodGet, "/api/v1/auth/session", token, nil)
	missing := f.do(t, http.MethodGet, "/api/v1/auth/session", "", nil)
	if w.Code != http.StatusUnauthorized || missing.Code != http.StatusUnauthorized {
		t.Fatalf("codes = %d, %d, want 401 for both", w.Code, missing.Code)
	}
	if w.Body.String() != missing.Body.String() {
		t.Errorf("expired and missing token responses differ")
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "/api/v1/auth/employee/login",
		map[string]string{"employee_id": f.empID, "pin": "4242"})

	w := f.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/v1/auth/session", token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("session after logout = %d, want 401", w.Code)
	}
}

func TestEmployeeRoutesAreAdminOnly(t *testing.T) {
	f := newFixture(t)
	token := f.login(t, "/api/v1/auth/employee/login",
		map[string]string{"employee_id": f.empID, "pin": "4242"})

	w := f.do(t, http.MethodGet, "/api/v1/employees/", token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/v1/employees/", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", w.Code)
	}
}

func TestAdminManagesRoster(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "/api/v1/auth/admin/login", map[string]string{"pin": "1701"})

	w := f.do(t, http.MethodPost, "/api/v1/employees/", admin,
		map[string]string{"name": "Theo", "pin": "5151"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	if bytes.Contains(w.Body.Bytes(), []byte("5151")) || bytes.Contains(w.Body.Bytes(), []byte("argon2id")) {
		t.Error("create response leaked credential material")
	}

	var created struct {
		Data struct {
			ID string `json:"employee_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	// The new employee can log in until the admin deactivates them.
	empToken := f.login(t, "/api/v1/auth/employee/login",
		map[string]string{"employee_id": created.Data.ID, "pin": "5151"})

	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/employees/%s/deactivate", created.Data.ID), admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("deactivate status = %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/v1/auth/session", empToken, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated employee's session still works, status = %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/api/v1/auth/employee/login", "",
		map[string]string{"employee_id": created.Data.ID, "pin": "5151"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated employee can log in, status = %d", w.Code)
	}
}

func TestUnknownEmployeeIs404ForAdmin(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "/api/v1/auth/admin/login", map[string]string{"pin": "1701"})

	w := f.do(t, http.MethodGet, "/api/v1/employees/no-such-id", admin, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
