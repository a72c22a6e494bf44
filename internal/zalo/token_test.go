package zalo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/zalobot/internal/errs"
)

type fakeRefresher struct {
	calls  atomic.Int32
	tokens []*Token
	err    error
	seen   []string
	mu     sync.Mutex
}

func (f *fakeRefresher) Refresh(_ context.Context, refreshToken string) (*Token, error) {
	n := int(f.calls.Add(1))
	f.mu.Lock()
	f.seen = append(f.seen, refreshToken)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if n > len(f.tokens) {
		return f.tokens[len(f.tokens)-1], nil
	}
	return f.tokens[n-1], nil
}

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestTokenCacheExpiryMargin(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ref := &fakeRefresher{tokens: []*Token{
		{AccessToken: "t1", Expiry: now.Add(time.Hour)},
		{AccessToken: "t2", Expiry: now.Add(3 * time.Hour)},
	}}
	cache := NewTokenCache("", ref, nil)
	cache.SetClock(fixedClock(&now))
	ctx := context.Background()

	got, err := cache.GetValidToken(ctx, "rt", "")
	if err != nil || got != "t1" {
		t.Fatalf("GetValidToken() = %q, %v; want t1", got, err)
	}

	// 30s before the margin boundary: still cached.
	now = now.Add(time.Hour - ExpiryMargin - 30*time.Second)
	if got, _ := cache.GetValidToken(ctx, "rt", ""); got != "t1" || ref.calls.Load() != 1 {
		t.Fatalf("expected cached t1 without refresh, got %q after %d calls", got, ref.calls.Load())
	}

	// Inside the last minute: refreshed.
	now = now.Add(time.Minute)
	if got, _ := cache.GetValidToken(ctx, "rt", ""); got != "t2" || ref.calls.Load() != 2 {
		t.Fatalf("expected refreshed t2, got %q after %d calls", got, ref.calls.Load())
	}
}

func TestTokenCacheSeededToken(t *testing.T) {
	t.Parallel()

	t.Run("refresh succeeds", func(t *testing.T) {
		ref := &fakeRefresher{tokens: []*Token{{AccessToken: "fresh"}}}
		cache := NewTokenCache("seed", ref, nil)

		got, err := cache.GetValidToken(context.Background(), "rt", "")
		if err != nil || got != "fresh" {
			t.Fatalf("GetValidToken() = %q, %v; want fresh", got, err)
		}
		if cache.ExpiresAt().IsZero() {
			t.Error("expected default lifetime to be applied")
		}
	})

	t.Run("refresh fails returns seed", func(t *testing.T) {
		ref := &fakeRefresher{err: errs.NewNetworkError("boom", nil)}
		cache := NewTokenCache("seed", ref, nil)

		got, err := cache.GetValidToken(context.Background(), "rt", "fallback")
		if err != nil || got != "seed" {
			t.Fatalf("GetValidToken() = %q, %v; want seed", got, err)
		}
	})
}

func TestTokenCacheFallback(t *testing.T) {
	t.Parallel()

	refreshErr := errs.NewCredentialError("missing", nil)

	tests := []struct {
		name     string
		fallback string
		want     string
		wantErr  bool
	}{
		{name: "uses fallback", fallback: "configured", want: "configured"},
		{name: "placeholder fallback", fallback: PlaceholderAccessToken, wantErr: true},
		{name: "no fallback", fallback: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewTokenCache("", &fakeRefresher{err: refreshErr}, nil)
			got, err := cache.GetValidToken(context.Background(), "", tt.fallback)
			if tt.wantErr {
				if !errors.Is(err, refreshErr) {
					t.Fatalf("expected refresh error, got %q, %v", got, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("GetValidToken() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestTokenCacheUsesRotatedRefreshToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ref := &fakeRefresher{tokens: []*Token{
		{AccessToken: "a1", RefreshToken: "rt2", Expiry: now.Add(time.Minute)},
		{AccessToken: "a2", Expiry: now.Add(time.Hour)},
	}}
	cache := NewTokenCache("", ref, nil)
	cache.SetClock(fixedClock(&now))

	_, _ = cache.GetValidToken(context.Background(), "rt1", "")
	_, _ = cache.GetValidToken(context.Background(), "rt1", "")

	if len(ref.seen) != 2 || ref.seen[0] != "rt1" || ref.seen[1] != "rt2" {
		t.Errorf("refresh tokens used = %v, want [rt1 rt2]", ref.seen)
	}
}

func TestOAuthRefresher(t *testing.T) {
	t.Parallel()

	var gotSecret, gotAppID, gotGrant, gotRefresh string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret = r.Header.Get("secret_key")
		gotAppID = r.URL.Query().Get("app_id")
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		gotGrant = r.PostForm.Get("grant_type")
		gotRefresh = r.PostForm.Get("refresh_token")

		w.Header().Set("Content-Type", "application/json")
		switch gotRefresh {
		case "good":
			_, _ = w.Write([]byte(`{"access_token":"acc","refresh_token":"rotated","expires_in":"90000"}`))
		case "no-expiry":
			_, _ = w.Write([]byte(`{"access_token":"acc2"}`))
		default:
			_, _ = w.Write([]byte(`{"error":-14014,"message":"Invalid refresh token"}`))
		}
	}))
	defer srv.Close()

	r := NewOAuthRefresher("app-1", "sk", srv.URL, 5*time.Second)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	tok, err := r.Refresh(context.Background(), "good")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if tok.AccessToken != "acc" || tok.RefreshToken != "rotated" || tok.Expiry.IsZero() {
		t.Errorf("unexpected token %+v", tok)
	}
	if gotSecret != "sk" || gotAppID != "app-1" || gotGrant != "refresh_token" {
		t.Errorf("request = secret %q app %q grant %q", gotSecret, gotAppID, gotGrant)
	}

	tok, err = r.Refresh(context.Background(), "no-expiry")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !tok.Expiry.Equal(now.Add(DefaultTokenLifetime)) {
		t.Errorf("Expiry = %v, want default lifetime", tok.Expiry)
	}

	if _, err := r.Refresh(context.Background(), "bad"); !errs.Is(err, errs.CodeNetwork) {
		t.Errorf("expected network error, got %v", err)
	}

	for _, rt := range []string{"", PlaceholderRefreshToken} {
		if _, err := r.Refresh(context.Background(), rt); !errs.Is(err, errs.CodeCredential) {
			t.Errorf("Refresh(%q) expected credential error, got %v", rt, err)
		}
	}
}
