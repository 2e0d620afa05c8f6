package goSession

import (
	"context"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/tokenstore"
)

func okBase() http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return textResponse(r, http.StatusOK, "ok"), nil
	})
}

func benchmarkRoundTrip(b *testing.B, store tokenstore.Store) {
	if err := tokenstore.WritePair(context.Background(), store, "T1", "R1"); err != nil {
		b.Fatalf("seed: %v", err)
	}
	tr := NewTransport(okBase(), store)
	req, _ := http.NewRequest(http.MethodGet, "http://identity.test/api/auth/all-with-images", nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := tr.RoundTrip(req)
		if err != nil {
			b.Fatalf("round trip: %v", err)
		}
		drainBody(resp)
	}
}

func BenchmarkRoundTripMemory(b *testing.B) {
	benchmarkRoundTrip(b, tokenstore.NewMemory())
}

func BenchmarkRoundTripRedis(b *testing.B) {
	mr, err := miniredis.Run()
	if err != nil {
		b.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store, err := tokenstore.NewRedis(rdb, "gs", "bench")
	if err != nil {
		b.Fatalf("redis store: %v", err)
	}
	benchmarkRoundTrip(b, store)
}

func BenchmarkRoundTripExempt(b *testing.B) {
	tr := NewTransport(okBase(), tokenstore.NewMemory())
	req, _ := http.NewRequest(http.MethodPost, "http://identity.test/api/auth/login", nil)
	req = req.WithContext(WithNoAuth(req.Context()))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resp, err := tr.RoundTrip(req)
		if err != nil {
			b.Fatalf("round trip: %v", err)
		}
		drainBody(resp)
	}
}
