package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/tokenstore"
)

func tokenFor(sub string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(fmt.Sprintf(`{"sub":%q}`, sub))) + ".sig"
}

type failingStore struct{}

func (failingStore) Read(context.Context, tokenstore.Kind) (string, bool, error) {
	return "", false, fmt.Errorf("%w: disk quota exceeded", tokenstore.ErrStorageUnavailable)
}
func (failingStore) Write(context.Context, tokenstore.Kind, string) error {
	return tokenstore.ErrStorageUnavailable
}
func (failingStore) Clear(context.Context) error { return tokenstore.ErrStorageUnavailable }

func newServiceTest(t *testing.T) (*Service, *tokenstore.Memory) {
	t.Helper()
	store := tokenstore.NewMemory()
	svc, err := NewService(context.Background(), store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func TestIsActiveTracksStore(t *testing.T) {
	svc, store := newServiceTest(t)
	ctx := context.Background()

	if active, err := svc.IsActive(ctx); err != nil || active {
		t.Fatalf("empty store: active=%v err=%v", active, err)
	}
	if err := store.Write(ctx, tokenstore.AccessToken, ""); err != nil {
		t.Fatalf("write: %v", err)
	}
	if active, _ := svc.IsActive(ctx); active {
		t.Fatal("empty token must not count as active")
	}
	if err := store.Write(ctx, tokenstore.AccessToken, "not-even-a-jwt"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if active, _ := svc.IsActive(ctx); !active {
		t.Fatal("presence alone must count as active")
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if active, _ := svc.IsActive(ctx); active {
		t.Fatal("cleared store must be inactive")
	}
}

func TestDecodeWithoutTokenFails(t *testing.T) {
	svc, _ := newServiceTest(t)
	_, err := svc.Decode(context.Background())
	var de *jwt.DecodeError
	if !errors.As(err, &de) || !errors.Is(err, jwt.ErrDecode) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeMalformedLeavesActive(t *testing.T) {
	svc, store := newServiceTest(t)
	ctx := context.Background()
	_ = store.Write(ctx, tokenstore.AccessToken, "garbage")

	if _, err := svc.Decode(ctx); !errors.Is(err, jwt.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if active, _ := svc.IsActive(ctx); !active {
		t.Fatal("decode failure must not affect IsActive")
	}
	if sub, ok := svc.Subject(ctx); ok || sub != "" {
		t.Fatalf("subject for malformed token: %q ok=%v", sub, ok)
	}
}

func TestDecodeDeterministic(t *testing.T) {
	svc, store := newServiceTest(t)
	ctx := context.Background()
	_ = store.Write(ctx, tokenstore.AccessToken, tokenFor("alice"))

	a, err := svc.Decode(ctx)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b, err := svc.Decode(ctx)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("decode not deterministic: %v vs %v", a, b)
	}
}

func TestSubjectFollowsTokenChanges(t *testing.T) {
	store := tokenstore.NewMemory()
	ctx := context.Background()
	_ = store.Write(ctx, tokenstore.AccessToken, tokenFor("alice"))

	svc, err := NewService(ctx, store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if sub, ok := svc.Subject(ctx); !ok || sub != "alice" {
		t.Fatalf("initial subject %q ok=%v", sub, ok)
	}

	_ = store.Write(ctx, tokenstore.AccessToken, tokenFor("bob"))
	if sub, ok := svc.Subject(ctx); !ok || sub != "bob" {
		t.Fatalf("subject after rotation %q ok=%v", sub, ok)
	}

	_ = store.Clear(ctx)
	if sub, ok := svc.Subject(ctx); ok || sub != "" {
		t.Fatalf("subject after logout %q ok=%v", sub, ok)
	}

	_ = store.Write(ctx, tokenstore.AccessToken, tokenFor("bob"))
	if sub, ok := svc.Subject(ctx); !ok || sub != "bob" {
		t.Fatalf("subject after re-login %q ok=%v", sub, ok)
	}
}

func TestStorageFailureSurfaces(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	svc, err := NewService(context.Background(), failingStore{}, WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("construction must not fail on storage errors: %v", err)
	}
	if logs.FilterMessage("session warm-up: token store unavailable").Len() != 1 {
		t.Fatalf("expected one warm-up warning, got %v", logs.All())
	}

	ctx := context.Background()
	if _, err := svc.IsActive(ctx); !errors.Is(err, tokenstore.ErrStorageUnavailable) {
		t.Fatalf("IsActive: expected ErrStorageUnavailable, got %v", err)
	}
	_, err = svc.Decode(ctx)
	if !errors.Is(err, tokenstore.ErrStorageUnavailable) || errors.Is(err, jwt.ErrDecode) {
		t.Fatalf("Decode: expected storage error only, got %v", err)
	}
	if _, ok := svc.Subject(ctx); ok {
		t.Fatal("Subject must report ok=false on storage failure")
	}
}

func TestWarmUpLogsMissingTokenAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	if _, err := NewService(context.Background(), tokenstore.NewMemory(), WithLogger(zap.New(core))); err != nil {
		t.Fatalf("new service: %v", err)
	}
	entries := logs.FilterMessage("session warm-up: no usable access token").All()
	if len(entries) != 1 || entries[0].Level != zapcore.DebugLevel {
		t.Fatalf("unexpected warm-up logs %v", logs.All())
	}
}

func TestNewServiceRequiresStore(t *testing.T) {
	if _, err := NewService(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}
