package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/qrgate/pkg/api"
	"github.com/rhuss/qrgate/pkg/auth/jwt"
	"github.com/rhuss/qrgate/pkg/pipeline"
	"github.com/rhuss/qrgate/pkg/qr"
	"github.com/rhuss/qrgate/pkg/stats"
	"github.com/rhuss/qrgate/pkg/transport"
	transporthttp "github.com/rhuss/qrgate/pkg/transport/http"
	"github.com/rhuss/qrgate/pkg/users"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	issuer, err := jwt.NewIssuer("cli-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	validator, err := jwt.NewValidator("cli-secret")
	if err != nil {
		t.Fatal(err)
	}
	store, err := users.NewStore(users.DefaultSeeds)
	if err != nil {
		t.Fatal(err)
	}
	services := transport.Services{
		QR:             &pipeline.Orchestrator{Factorizer: qr.NewHouseholder(), Analyzer: stats.NewEngine()},
		Operations:     stats.NewEngine(),
		OperationsAuth: validator,
		Validator:      validator,
		Login:          users.NewService(store, issuer, nil),
	}
	srv := httptest.NewServer(transporthttp.NewAdapter(services, transporthttp.DefaultConfig(), nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func login(t *testing.T, url string) string {
	t.Helper()
	out, err := execute(t, "--url", url, "login", "--email", "test@test.com", "--password", "123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return strings.TrimSpace(out)
}

func TestLoginAndValidate(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv.URL)
	if token == "" {
		t.Fatal("empty token")
	}

	out, err := execute(t, "--url", srv.URL, "validate-token", token)
	if err != nil {
		t.Fatalf("validate-token: %v", err)
	}
	if strings.TrimSpace(out) != "1" {
		t.Errorf("user id = %q, want 1", out)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	_, err := execute(t, "--url", srv.URL, "login", "--email", "test@test.com", "--password", "x")
	if err == nil || !strings.Contains(err.Error(), "Invalid password") {
		t.Errorf("err = %v, want Invalid password", err)
	}
}

func TestFactorizeInline(t *testing.T) {
	srv := newTestServer(t)
	out, err := execute(t, "--url", srv.URL, "factorize", "[[1,0],[0,1]]")
	if err != nil {
		t.Fatalf("factorize: %v", err)
	}
	var res api.QRResponse
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if res.Operations == nil || !res.Operations.HasDiagonalMatrix {
		t.Errorf("operations = %+v", res.Operations)
	}
}

func TestFactorizeFromFile(t *testing.T) {
	srv := newTestServer(t)
	path := filepath.Join(t.TempDir(), "m.json")
	if err := os.WriteFile(path, []byte("[[1,2],[3,4],[5,6]]"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "--url", srv.URL, "factorize", "-f", path)
	if err != nil {
		t.Fatalf("factorize: %v", err)
	}
	if !strings.Contains(out, `"q"`) || !strings.Contains(out, `"r"`) {
		t.Errorf("output = %s", out)
	}
}

func TestFactorizeRejectsBadMatrixLocally(t *testing.T) {
	_, err := execute(t, "--url", "http://127.0.0.1:1", "factorize", "[[1,2,3]]")
	if err == nil || !strings.Contains(err.Error(), "Number of rows") {
		t.Errorf("err = %v", err)
	}
}

func TestOperationsNeedsToken(t *testing.T) {
	srv := newTestServer(t)
	body := `{"q":[[1]],"r":[[2]]}`

	if _, err := execute(t, "--url", srv.URL, "operations", body); err == nil {
		t.Error("expected 401 without token")
	}

	token := login(t, srv.URL)
	out, err := execute(t, "--url", srv.URL, "--token", token, "operations", body)
	if err != nil {
		t.Fatalf("operations: %v", err)
	}
	var got stats.Statistics
	json.Unmarshal([]byte(out), &got)
	if got.TotalSum != 3 || got.MaxValue != 2 {
		t.Errorf("statistics = %+v", got)
	}
}

func TestInputErrors(t *testing.T) {
	if _, err := execute(t, "factorize"); err == nil {
		t.Error("expected error without input")
	}
	if _, err := execute(t, "factorize", "-f", "x.json", "[[1]]"); err == nil {
		t.Error("expected error for inline and file")
	}
	if _, err := execute(t, "validate-token", "--token", ""); err == nil {
		t.Error("expected error without token")
	}
}
