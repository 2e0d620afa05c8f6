package goSession

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/identity"
	"github.com/MrEthical07/goSession/tokenstore"
)

// fakeIdentity is an in-process identity service. Access tokens are opaque
// strings accepted while marked valid; refresh tokens rotate once.
type fakeIdentity struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	users         map[string]string
	loginPair     identity.TokenPair
	valid         map[string]bool
	rotations     map[string]identity.TokenPair
	refreshStatus int
	refreshGate   chan struct{}
	loginAuth     []string
	refreshAuth   []string
	resourceAuth  []string
	echoBodies    []string
	registered    []identity.User

	refreshCalls atomic.Int32
	unauthorized atomic.Int32
}

func newFakeIdentity(t *testing.T) *fakeIdentity {
	t.Helper()
	f := &fakeIdentity{
		t:         t,
		users:     map[string]string{"a": "b"},
		loginPair: identity.TokenPair{Token: "T1", RefreshToken: "R1"},
		valid:     map[string]bool{},
		rotations: map[string]identity.TokenPair{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", f.login)
	mux.HandleFunc("POST /api/auth/register", f.register)
	mux.HandleFunc("POST /refresh", f.refresh)
	mux.HandleFunc("GET /api/auth/all-with-images", f.protected(f.listUsers))
	mux.HandleFunc("GET /api/auth/image/{id}", f.protected(f.image))
	mux.HandleFunc("POST /echo", f.protected(f.echo))
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIdentity) rotate(refresh string, next identity.TokenPair) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotations[refresh] = next
}

func (f *fakeIdentity) expire(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid[token] = false
}

func (f *fakeIdentity) setRefreshStatus(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshStatus = code
}

func (f *fakeIdentity) gateRefresh() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshGate = make(chan struct{})
	return f.refreshGate
}

func (f *fakeIdentity) snapshot() (login, refresh, resource, echo []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loginAuth...),
		append([]string(nil), f.refreshAuth...),
		append([]string(nil), f.resourceAuth...),
		append([]string(nil), f.echoBodies...)
}

func (f *fakeIdentity) login(w http.ResponseWriter, r *http.Request) {
	var creds identity.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.loginAuth = append(f.loginAuth, r.Header.Get("Authorization"))
	pass, ok := f.users[creds.Username]
	pair := f.loginPair
	if ok && pass == creds.Password {
		f.valid[pair.Token] = true
	}
	f.mu.Unlock()

	if !ok || pass != creds.Password {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
		return
	}
	_ = json.NewEncoder(w).Encode(pair)
}

func (f *fakeIdentity) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	var u identity.User
	if err := json.Unmarshal([]byte(r.FormValue("user")), &u); err != nil {
		http.Error(w, "bad user", http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.loginAuth = append(f.loginAuth, r.Header.Get("Authorization"))
	f.registered = append(f.registered, u)
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *fakeIdentity) refresh(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)

	f.mu.Lock()
	f.refreshAuth = append(f.refreshAuth, r.Header.Get("Authorization"))
	gate := f.refreshGate
	status := f.refreshStatus
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if status != 0 {
		http.Error(w, "refresh refused", status)
		return
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	next, ok := f.rotations[body.RefreshToken]
	if ok {
		delete(f.rotations, body.RefreshToken)
		f.valid[next.Token] = true
	}
	f.mu.Unlock()

	if !ok {
		http.Error(w, "unknown refresh token", http.StatusUnauthorized)
		return
	}
	_ = json.NewEncoder(w).Encode(next)
}

func (f *fakeIdentity) protected(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		f.resourceAuth = append(f.resourceAuth, token)
		ok := f.valid[token]
		f.mu.Unlock()

		if !ok {
			f.unauthorized.Add(1)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (f *fakeIdentity) listUsers(w http.ResponseWriter, _ *http.Request) {
	_ = json.NewEncoder(w).Encode([]identity.User{{ID: 1, Name: "a", Email: "a@example.com"}})
}

func (f *fakeIdentity) image(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	_, _ = io.WriteString(w, "png:"+r.PathValue("id"))
}

func (f *fakeIdentity) echo(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.echoBodies = append(f.echoBodies, string(body))
	f.mu.Unlock()
	_, _ = w.Write(body)
}

// newTestClient builds a client against f over an in-memory store.
func newTestClient(t *testing.T, f *fakeIdentity, configure ...func(*Builder)) (*Client, *tokenstore.Memory, *ChannelNotifier) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.API.BaseURL = f.srv.URL
	cfg.API.Timeout = 5 * time.Second

	store := tokenstore.NewMemory()
	notes := NewChannelNotifier(16)
	b := New().WithConfig(cfg).WithStore(store).WithNotifier(notes)
	for _, fn := range configure {
		fn(b)
	}
	c, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, store, notes
}

func mustRead(t *testing.T, s tokenstore.Store, kind tokenstore.Kind) (string, bool) {
	t.Helper()
	v, ok, err := s.Read(context.Background(), kind)
	if err != nil {
		t.Fatalf("read %s: %v", kind, err)
	}
	return v, ok
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func drainNotifications(n *ChannelNotifier) []Notification {
	var out []Notification
	for {
		select {
		case note := <-n.Notifications():
			out = append(out, note)
		default:
			return out
		}
	}
}
