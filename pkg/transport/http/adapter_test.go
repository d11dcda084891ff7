package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/qrgate/pkg/api"
	"github.com/rhuss/qrgate/pkg/auth"
	"github.com/rhuss/qrgate/pkg/auth/jwt"
	authremote "github.com/rhuss/qrgate/pkg/auth/remote"
	"github.com/rhuss/qrgate/pkg/httpclient"
	"github.com/rhuss/qrgate/pkg/matrix"
	"github.com/rhuss/qrgate/pkg/pipeline"
	"github.com/rhuss/qrgate/pkg/qr"
	"github.com/rhuss/qrgate/pkg/stats"
	statsremote "github.com/rhuss/qrgate/pkg/stats/remote"
	"github.com/rhuss/qrgate/pkg/transport"
	"github.com/rhuss/qrgate/pkg/users"
)

const testSecret = "test-secret"

type stack struct {
	issuer    *jwt.Issuer
	validator *jwt.Validator
	login     *users.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()
	issuer, err := jwt.NewIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	validator, err := jwt.NewValidator(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	store, err := users.NewStore(users.DefaultSeeds)
	if err != nil {
		t.Fatal(err)
	}
	return &stack{
		issuer:    issuer,
		validator: validator,
		login:     users.NewService(store, issuer, nil),
	}
}

// allInOne wires every role into one process with local statistics.
func (s *stack) allInOne() transport.Services {
	return transport.Services{
		QR: &pipeline.Orchestrator{
			Factorizer: qr.NewHouseholder(),
			Analyzer:   stats.NewEngine(),
		},
		Operations:     stats.NewEngine(),
		OperationsAuth: s.validator,
		Validator:      s.validator,
		Login:          s.login,
	}
}

func (s *stack) token(t *testing.T) string {
	t.Helper()
	tok, err := s.issuer.Issue(&auth.Identity{ID: "1", Email: "test@test.com"})
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func newTestHandler(services transport.Services, cfg Config) http.Handler {
	return NewAdapter(services, cfg, nil).Handler()
}

func post(t *testing.T, h http.Handler, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var body api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestLogin(t *testing.T) {
	s := newStack(t)
	h := newTestHandler(s.allInOne(), DefaultConfig())

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"success", `{"email":"test@test.com","password":"123456"}`, http.StatusOK, ""},
		{"email is case-insensitive", `{"email":"TEST@test.com","password":"123456"}`, http.StatusOK, ""},
		{"missing password", `{"email":"test@test.com"}`, http.StatusBadRequest, transport.MsgLoginMissing},
		{"empty body", `{}`, http.StatusBadRequest, transport.MsgLoginMissing},
		{"malformed JSON", `{"email":`, http.StatusBadRequest, transport.MsgLoginMissing},
		{"unknown user", `{"email":"nobody@test.com","password":"x"}`, http.StatusInternalServerError, "User not found"},
		{"wrong password", `{"email":"test@test.com","password":"nope"}`, http.StatusInternalServerError, "Invalid password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, "/auth/login", "", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantError != "" {
				if got := decodeError(t, rec).Error; got != tt.wantError {
					t.Errorf("error = %q, want %q", got, tt.wantError)
				}
				return
			}

			var tok api.TokenResponse
			json.NewDecoder(rec.Body).Decode(&tok)
			id, err := s.validator.Validate(context.Background(), tok.Token)
			if err != nil {
				t.Fatalf("issued token does not validate: %v", err)
			}
			if id.ID != "1" {
				t.Errorf("user id = %q, want 1", id.ID)
			}
		})
	}
}

func TestLogin_Throttled(t *testing.T) {
	s := newStack(t)
	services := s.allInOne()
	store, _ := users.NewStore(users.DefaultSeeds)
	services.Login = users.NewService(store, s.issuer, auth.NewInProcessLimiter(1))
	h := newTestHandler(services, DefaultConfig())

	body := `{"email":"test@test.com","password":"nope"}`
	post(t, h, "/auth/login", "", body)
	rec := post(t, h, "/auth/login", "", body)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := decodeError(t, rec).Error; got != transport.MsgLoginThrottled {
		t.Errorf("error = %q", got)
	}
}

func TestValidateToken(t *testing.T) {
	s := newStack(t)
	h := newTestHandler(s.allInOne(), DefaultConfig())

	t.Run("valid", func(t *testing.T) {
		rec := post(t, h, "/auth/token/validate", s.token(t), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var got api.ValidateResponse
		json.NewDecoder(rec.Body).Decode(&got)
		if got.UserID != "1" {
			t.Errorf("userId = %q, want 1", got.UserID)
		}
	})

	t.Run("missing", func(t *testing.T) {
		rec := post(t, h, "/auth/token/validate", "", "")
		if rec.Code != http.StatusUnauthorized || decodeError(t, rec).Error != auth.MsgNoToken {
			t.Errorf("got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("garbled", func(t *testing.T) {
		rec := post(t, h, "/auth/token/validate", "not.a.jwt", "")
		if rec.Code != http.StatusUnauthorized || decodeError(t, rec).Error != auth.MsgInvalidToken {
			t.Errorf("got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("verifier unavailable", func(t *testing.T) {
		services := s.allInOne()
		services.Validator = auth.ValidatorFunc(func(context.Context, string) (*auth.Identity, error) {
			return nil, auth.NewError(auth.KindUnavailable, errors.New("backend down"))
		})
		rec := post(t, newTestHandler(services, DefaultConfig()), "/auth/token/validate", "abc", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		body := decodeError(t, rec)
		if body.Error != auth.MsgValidationError || !strings.Contains(body.Details, "backend down") {
			t.Errorf("body = %+v", body)
		}
	})
}

func TestOperations(t *testing.T) {
	s := newStack(t)
	h := newTestHandler(s.allInOne(), DefaultConfig())
	tok := s.token(t)

	t.Run("success", func(t *testing.T) {
		rec := post(t, h, "/matrix/operations", tok, `{"q":[[1,0],[0,1]],"r":[[2,3],[0,4]]}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var got stats.Statistics
		json.NewDecoder(rec.Body).Decode(&got)
		want := stats.Statistics{MaxValue: 4, MinValue: 0, AverageValue: 11.0 / 8, TotalSum: 11, HasDiagonalMatrix: true}
		if got != want {
			t.Errorf("statistics = %+v, want %+v", got, want)
		}
	})

	t.Run("no token", func(t *testing.T) {
		rec := post(t, h, "/matrix/operations", "", `{"q":[[1]],"r":[[1]]}`)
		if rec.Code != http.StatusUnauthorized || decodeError(t, rec).Error != auth.MsgNoToken {
			t.Errorf("got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("garbled token", func(t *testing.T) {
		rec := post(t, h, "/matrix/operations", "garbage", `{"q":[[1]],"r":[[1]]}`)
		if rec.Code != http.StatusUnauthorized || decodeError(t, rec).Error != auth.MsgInvalidToken {
			t.Errorf("got %d %s", rec.Code, rec.Body.String())
		}
	})

	for _, body := range []string{`{"q":[[1]]}`, `{"r":[[1]]}`, `{}`, `{"q":"x","r":[[1]]}`} {
		t.Run("invalid "+body, func(t *testing.T) {
			rec := post(t, h, "/matrix/operations", tok, body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decodeError(t, rec).Error; got != transport.MsgOperationsInvalid {
				t.Errorf("error = %q", got)
			}
		})
	}

	t.Run("empty matrices", func(t *testing.T) {
		rec := post(t, h, "/matrix/operations", tok, `{"q":[],"r":[]}`)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		body := decodeError(t, rec)
		if body.Error != transport.MsgOperationsFailed || body.Details == "" {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("sum overflow", func(t *testing.T) {
		rec := post(t, h, "/matrix/operations", tok, `{"q":[[1.7e308]],"r":[[1.7e308]]}`)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500: %s", rec.Code, rec.Body.String())
		}
		body := decodeError(t, rec)
		if body.Error != transport.MsgOperationsFailed || !strings.Contains(body.Details, "overflows") {
			t.Errorf("body = %+v", body)
		}
	})
}

func TestQR_Local(t *testing.T) {
	s := newStack(t)
	h := newTestHandler(s.allInOne(), DefaultConfig())

	rec := post(t, h, "/matrix/qr", "", `{"matrix":[[1,2,3],[4,5,6],[7,8,9]]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var got api.QRResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Q.Rows() != 3 || got.R.Cols() != 3 {
		t.Fatalf("shapes q=%dx%d r=%dx%d", got.Q.Rows(), got.Q.Cols(), got.R.Rows(), got.R.Cols())
	}
	if got.Operations == nil {
		t.Fatal("operations missing")
	}
	if d := got.Operations.MaxValue - 11.078234188139946; d > 1e-9 || d < -1e-9 {
		t.Errorf("maxValue = %v", got.Operations.MaxValue)
	}
	if got.Operations.HasDiagonalMatrix {
		t.Error("hasDiagonalMatrix = true, want false")
	}
}

func TestQR_ValidationErrors(t *testing.T) {
	s := newStack(t)
	h := newTestHandler(s.allInOne(), DefaultConfig())

	tests := []struct {
		body string
		want string
	}{
		{`{}`, matrix.MsgNotArray},
		{`{"matrix":[]}`, matrix.MsgNotArray},
		{`{"matrix":[[]]}`, matrix.MsgEmptyRows},
		{`{"matrix":[[1,2],[3]]}`, matrix.MsgRaggedRows},
		{`{"matrix":[[1,"a"],[3,4]]}`, matrix.MsgInvalidElement},
		{`{"matrix":[[1,2,3],[4,5,6]]}`, matrix.MsgTooFewRows},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			rec := post(t, h, "/matrix/qr", "", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decodeError(t, rec).Error; got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQR_MalformedJSON(t *testing.T) {
	s := newStack(t)
	rec := post(t, newTestHandler(s.allInOne(), DefaultConfig()), "/matrix/qr", "", `{"matrix":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestQR_BodyTooLarge(t *testing.T) {
	s := newStack(t)
	h := newTestHandler(s.allInOne(), Config{MaxBodySize: 16})
	rec := post(t, h, "/matrix/qr", "", `{"matrix":[[1,2],[3,4],[5,6]]}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestQR_RequireAuth(t *testing.T) {
	s := newStack(t)
	services := s.allInOne()
	services.QRAuth = s.validator
	h := newTestHandler(services, DefaultConfig())

	rec := post(t, h, "/matrix/qr", "", `{"matrix":[[1]]}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want 401", rec.Code)
	}
	rec = post(t, h, "/matrix/qr", s.token(t), `{"matrix":[[1]]}`)
	if rec.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

// TestQR_SplitDeployment runs the login, authz, operations and qr roles as
// separate servers talking to each other over HTTP.
func TestQR_SplitDeployment(t *testing.T) {
	s := newStack(t)

	authz := httptest.NewServer(newTestHandler(transport.Services{
		Validator: s.validator,
		Login:     s.login,
	}, DefaultConfig()))
	defer authz.Close()

	remoteValidator := authremote.New(authz.URL, httpclient.Options{})
	operations := httptest.NewServer(newTestHandler(transport.Services{
		Operations:     stats.NewEngine(),
		OperationsAuth: remoteValidator,
	}, DefaultConfig()))
	defer operations.Close()

	qrServices := transport.Services{
		QR: &pipeline.Orchestrator{
			Factorizer: qr.NewHouseholder(),
			Analyzer:   statsremote.New(operations.URL, httpclient.Options{}),
			Tokens:     pipeline.ForwardToken(),
		},
		QRAuth: remoteValidator,
	}
	h := newTestHandler(qrServices, Config{PathPrefix: "/api"})

	// Log in through the authz server.
	resp, err := http.Post(authz.URL+"/auth/login", "application/json",
		strings.NewReader(`{"email":"test@test.com","password":"123456"}`))
	if err != nil {
		t.Fatal(err)
	}
	var tok api.TokenResponse
	json.NewDecoder(resp.Body).Decode(&tok)
	resp.Body.Close()

	rec := post(t, h, "/api/matrix/qr", tok.Token, `{"matrix":[[2,0],[0,3]]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got api.QRResponse
	json.NewDecoder(rec.Body).Decode(&got)
	if got.Operations == nil || !got.Operations.HasDiagonalMatrix {
		t.Errorf("operations = %+v, want diagonal", got.Operations)
	}
	if d := got.Operations.TotalSum - 7; d > 1e-9 || d < -1e-9 {
		t.Errorf("totalSum = %v, want 7", got.Operations.TotalSum)
	}

	rec = post(t, h, "/api/matrix/qr", "forged", `{"matrix":[[1]]}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("forged token: status = %d, want 401", rec.Code)
	}
}

func TestQR_ForwardTokenMissing(t *testing.T) {
	s := newStack(t)
	services := s.allInOne()
	services.QR = &pipeline.Orchestrator{
		Factorizer: qr.NewHouseholder(),
		Analyzer:   stats.NewEngine(),
		Tokens:     pipeline.ForwardToken(),
	}
	h := newTestHandler(services, DefaultConfig())

	rec := post(t, h, "/matrix/qr", "", `{"matrix":[[1]]}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := decodeError(t, rec).Error; got != transport.MsgQRNoToken {
		t.Errorf("error = %q", got)
	}

	rec = post(t, h, "/matrix/qr", s.token(t), `{"matrix":[[1]]}`)
	if rec.Code != http.StatusOK {
		t.Errorf("ungated route with bearer: status = %d, want 200", rec.Code)
	}
}

func TestQR_StatisticsUnavailable(t *testing.T) {
	s := newStack(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"Error validating token"}`))
	}))
	defer down.Close()

	services := s.allInOne()
	services.QR = &pipeline.Orchestrator{
		Factorizer: qr.NewHouseholder(),
		Analyzer:   statsremote.New(down.URL, httpclient.Options{}),
		Tokens:     pipeline.ServiceToken(s.issuer, auth.Identity{ID: "qr-service"}),
	}

	rec := post(t, newTestHandler(services, DefaultConfig()), "/matrix/qr", "", `{"matrix":[[1]]}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Error != transport.MsgQRDownstream || !strings.Contains(body.Details, "503") {
		t.Errorf("body = %+v", body)
	}
}

func TestRolesDisableRoutes(t *testing.T) {
	s := newStack(t)
	h := newTestHandler(transport.Services{Login: s.login}, DefaultConfig())

	rec := post(t, h, "/matrix/qr", "", `{"matrix":[[1]]}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("qr on login-only server: status = %d, want 404", rec.Code)
	}
}

func TestBannerHealthAndMetrics(t *testing.T) {
	s := newStack(t)
	h := newTestHandler(s.allInOne(), DefaultConfig())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("banner status = %d", rec.Code)
	}
	var banner api.StatusResponse
	json.NewDecoder(rec.Body).Decode(&banner)
	if banner.Status != "ok" || banner.Message != BannerMessage {
		t.Errorf("banner = %+v", banner)
	}
	if strings.Join(banner.Services, ",") != "login,authz,operations,qr" {
		t.Errorf("services = %v", banner.Services)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(transport.RequestIDHeader) == "" {
		t.Error("X-Request-ID not set")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "qrgate_requests_in_flight") {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestMetricsDisabled(t *testing.T) {
	s := newStack(t)
	h := newTestHandler(s.allInOne(), Config{Metrics: false})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRecoveryFromPanickingRunner(t *testing.T) {
	services := transport.Services{QR: panicRunner{}}
	rec := post(t, newTestHandler(services, DefaultConfig()), "/matrix/qr", "", `{"matrix":[[1]]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("Internal server error")) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

type panicRunner struct{}

func (panicRunner) Run(context.Context, any) (*pipeline.Result, error) {
	panic("boom")
}
