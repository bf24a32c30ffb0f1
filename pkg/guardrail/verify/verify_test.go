package verify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"
)

func TestHashEvidence(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashEvidence("abc"); got != want {
		t.Errorf("HashEvidence(abc) = %s, want %s", got, want)
	}
	if HashEvidence("a") == HashEvidence("b") {
		t.Error("different inputs produced the same hash")
	}
}

func TestSet(t *testing.T) {
	set := NewSet()
	if _, ok := set.Get("seda"); ok {
		t.Fatal("empty set returned a verifier")
	}

	set.Register("seda", Func(func(context.Context, string) (Verdict, error) {
		return Verdict{Valid: true, Source: "seda"}, nil
	}))
	set.Register("archive", Func(func(context.Context, string) (Verdict, error) {
		return Verdict{}, nil
	}))

	v, ok := set.Get("seda")
	if !ok {
		t.Fatal("Get(seda) not found")
	}
	verdict, err := v.Verify(context.Background(), "h")
	if err != nil || !verdict.Valid {
		t.Errorf("Verify() = %+v, %v", verdict, err)
	}

	names := set.Names()
	if len(names) != 2 || names[0] != "archive" || names[1] != "seda" {
		t.Errorf("Names() = %v, want [archive seda]", names)
	}
}

func TestHTTPVerifier(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      Verdict
		wantErr   bool
		wantIsErr error
	}{
		{
			name:   "valid",
			status: http.StatusOK,
			body:   `{"is_valid": true, "source": "seda"}`,
			want:   Verdict{Valid: true, Source: "seda"},
		},
		{
			name:   "invalid",
			status: http.StatusOK,
			body:   `{"is_valid": false, "source": "seda"}`,
			want:   Verdict{Valid: false, Source: "seda"},
		},
		{
			name:      "server error",
			status:    http.StatusBadGateway,
			body:      `upstream down`,
			wantErr:   true,
			wantIsErr: ErrUnexpectedStatus,
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `{"is_valid":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq verifyRequest
			var gotHeader string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				gotHeader = r.Header.Get("X-Api-Key")
				_ = json.NewDecoder(r.Body).Decode(&gotReq)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			v := NewHTTPVerifier(server.URL, time.Second, WithHeader("X-Api-Key", "k1"))
			got, err := v.Verify(context.Background(), "deadbeef")

			if gotReq.EvidenceHash != "deadbeef" {
				t.Errorf("request evidence_hash = %q, want deadbeef", gotReq.EvidenceHash)
			}
			if gotHeader != "k1" {
				t.Errorf("X-Api-Key = %q, want k1", gotHeader)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantIsErr != nil && !errors.Is(err, tt.wantIsErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantIsErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Verify() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHTTPVerifierHonorsContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	v := NewHTTPVerifier(server.URL, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := v.Verify(ctx, "h")
	if err == nil {
		t.Fatal("Verify() expected error after deadline")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Verify() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Verify() did not return promptly after the deadline")
	}
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]Verdict
	getErr  error
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]Verdict)}
}

func (c *memoryCache) Get(_ context.Context, key string) (Verdict, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return Verdict{}, false, c.getErr
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, v Verdict, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v
	c.sets++
	return nil
}

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) RecordCacheHit(string)  { o.hits++ }
func (o *countingObserver) RecordCacheMiss(string) { o.misses++ }

func TestCachingVerifier(t *testing.T) {
	calls := 0
	next := Func(func(_ context.Context, hash string) (Verdict, error) {
		calls++
		if hash == "bad" {
			return Verdict{}, errors.New("upstream failure")
		}
		return Verdict{Valid: hash == "good", Source: "seda"}, nil
	})

	cache := newMemoryCache()
	obs := &countingObserver{}
	v := NewCachingVerifier("seda", next, cache, time.Minute, nil).WithObserver(obs)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := v.Verify(ctx, "good")
		if err != nil || !got.Valid {
			t.Fatalf("Verify(good) = %+v, %v", got, err)
		}
	}
	if calls != 1 {
		t.Errorf("next called %d times, want 1", calls)
	}
	if obs.hits != 2 || obs.misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 2/1", obs.hits, obs.misses)
	}
	if _, ok := cache.entries["seda:good"]; !ok {
		t.Error("verdict not stored under capability-prefixed key")
	}

	if _, err := v.Verify(ctx, "bad"); err == nil {
		t.Error("Verify(bad) expected error")
	}
	if _, err := v.Verify(ctx, "bad"); err == nil {
		t.Error("Verify(bad) expected error on second call")
	}
	if calls != 3 {
		t.Errorf("errors must not be cached: next called %d times, want 3", calls)
	}
}

func TestCachingVerifierCacheFailureFallsThrough(t *testing.T) {
	calls := 0
	next := Func(func(context.Context, string) (Verdict, error) {
		calls++
		return Verdict{Valid: true}, nil
	})

	cache := newMemoryCache()
	cache.getErr = errors.New("connection refused")
	v := NewCachingVerifier("seda", next, cache, time.Minute, nil)

	got, err := v.Verify(context.Background(), "h")
	if err != nil || !got.Valid {
		t.Fatalf("Verify() = %+v, %v", got, err)
	}
	if calls != 1 {
		t.Errorf("next called %d times, want 1", calls)
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		t.Skip("REDIS_URL not set, skipping Redis integration test")
	}

	ctx := context.Background()
	client, err := ConnectRedis(ctx, RedisOptions{Address: addr, MaxRetries: 1}, nil)
	if err != nil {
		t.Fatalf("ConnectRedis() error = %v", err)
	}
	defer client.Close()

	cache := NewRedisCache(client, "kairo-test:")
	key := "seda:" + HashEvidence(t.Name()+time.Now().String())
	defer client.Del(ctx, "kairo-test:"+key)

	if _, ok, err := cache.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get() on empty key = ok %v, err %v", ok, err)
	}

	want := Verdict{Valid: true, Source: "seda"}
	if err := cache.Set(ctx, key, want, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := cache.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}
