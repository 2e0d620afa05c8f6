package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/jwt"
)

func newIdentityServer(t *testing.T) *httptest.Server {
	t.Helper()
	iss, err := jwt.NewIssuer(jwt.IssuerConfig{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("sessionctl-test"),
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	tok, err := iss.Issue("alice", "jti-1", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"token": tok, "refreshToken": "R1"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCmd(t *testing.T, srv *httptest.Server, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"-api", srv.URL}, args...)
	code := run(context.Background(), full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSessionPersistsAcrossRuns(t *testing.T) {
	t.Setenv("GOSESSION_STORE_BACKEND", "file")
	t.Setenv("GOSESSION_FILE_DIR", t.TempDir())
	srv := newIdentityServer(t)

	if code, _, stderr := runCmd(t, srv, "login", "alice", "pw"); code != 0 {
		t.Fatalf("login exit %d: %s", code, stderr)
	}
	code, stdout, stderr := runCmd(t, srv, "whoami")
	if code != 0 || strings.TrimSpace(stdout) != "alice" {
		t.Fatalf("whoami = %d %q %q", code, stdout, stderr)
	}
	if code, stdout, _ := runCmd(t, srv, "status"); code != 0 || !strings.Contains(stdout, "true") {
		t.Fatalf("status = %d %q", code, stdout)
	}

	if code, _, stderr := runCmd(t, srv, "logout"); code != 0 {
		t.Fatalf("logout exit %d: %s", code, stderr)
	}
	if code, _, _ := runCmd(t, srv, "whoami"); code != 1 {
		t.Fatalf("whoami after logout should fail, got exit %d", code)
	}
	if code, stdout, _ := runCmd(t, srv, "open", "home"); code != 0 || !strings.Contains(stdout, "redirected to login") {
		t.Fatalf("open home = %d %q", code, stdout)
	}
}

func TestDefaultStoreSurvivesRestart(t *testing.T) {
	cfgHome := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", cfgHome)
	srv := newIdentityServer(t)

	if code, _, stderr := runCmd(t, srv, "login", "alice", "pw"); code != 0 {
		t.Fatalf("login exit %d: %s", code, stderr)
	}
	code, stdout, stderr := runCmd(t, srv, "whoami")
	if code != 0 || strings.TrimSpace(stdout) != "alice" {
		t.Fatalf("whoami = %d %q %q", code, stdout, stderr)
	}
	if _, err := os.Stat(filepath.Join(cfgHome, "goSession", "tokens.db")); err != nil {
		t.Fatalf("expected the default sqlite store: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	t.Setenv("GOSESSION_STORE_BACKEND", "memory")
	srv := newIdentityServer(t)

	code, _, stderr := runCmd(t, srv, "login", "alice", "nope")
	if code != 1 || !strings.Contains(stderr, "login:") {
		t.Fatalf("expected exit 1 with login error, got %d %q", code, stderr)
	}
}

func TestUsageErrors(t *testing.T) {
	t.Setenv("GOSESSION_STORE_BACKEND", "memory")
	srv := newIdentityServer(t)

	tests := [][]string{
		{},
		{"frobnicate"},
		{"login", "alice"},
		{"image", "abc", "out.png"},
	}
	for _, args := range tests {
		if code, _, _ := runCmd(t, srv, args...); code != 2 {
			t.Fatalf("args %v: expected exit 2, got %d", args, code)
		}
	}
}
