package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindMissing, "missing"},
		{KindInvalid, "invalid"},
		{KindUnavailable, "unavailable"},
		{KindTimeout, "timeout"},
		{Kind(42), "Kind(42)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	cause := errors.New("signature is invalid")
	wrapped := fmt.Errorf("validating: %w", NewError(KindInvalid, cause))

	kind, ok := KindOf(wrapped)
	if !ok || kind != KindInvalid {
		t.Errorf("KindOf = %v, %v; want invalid, true", kind, ok)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("Error should unwrap to its cause")
	}
	if _, ok := KindOf(cause); ok {
		t.Error("plain errors have no kind")
	}
}

func TestErrorString(t *testing.T) {
	if got := NewError(KindMissing, ErrMissingToken).Error(); got != "auth missing: no token provided" {
		t.Errorf("got %q", got)
	}
	if got := (&Error{Kind: KindTimeout}).Error(); got != "auth timeout" {
		t.Errorf("got %q", got)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if IdentityFromContext(ctx) != nil || TokenFromContext(ctx) != "" {
		t.Fatal("empty context should carry nothing")
	}

	ctx = SetIdentity(ctx, &Identity{ID: "1", Email: "test@test.com"})
	ctx = ContextWithToken(ctx, "abc")

	if id := IdentityFromContext(ctx); id == nil || id.ID != "1" {
		t.Errorf("IdentityFromContext = %+v", id)
	}
	if tok := TokenFromContext(ctx); tok != "abc" {
		t.Errorf("TokenFromContext = %q", tok)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"Bearer ", ""},
		{"Bearer", ""},
		{"Basic dXNlcjpwYXNz", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("POST", "/matrix/operations", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(r); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestInProcessLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewInProcessLimiter(2)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Allow(ctx, "test@test.com"); err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, "test@test.com"); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("third attempt: got %v, want ErrTooManyRequests", err)
	}
	if err := l.Allow(ctx, "other@test.com"); err != nil {
		t.Errorf("keys should be independent, got %v", err)
	}

	now = now.Add(time.Minute)
	if err := l.Allow(ctx, "test@test.com"); err != nil {
		t.Errorf("new window should allow, got %v", err)
	}
}

func TestInProcessLimiter_SweepsOncePerMinute(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewInProcessLimiter(5)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	l.Allow(ctx, "a@test.com")
	now = now.Add(time.Minute)

	// New windows inside the same minute do not walk the map again.
	l.Allow(ctx, "b@test.com")
	swept := l.lastSweep
	if _, ok := l.counters["a@test.com"]; ok {
		t.Fatal("expired window for a@test.com should have been swept")
	}
	now = now.Add(30 * time.Second)
	l.Allow(ctx, "c@test.com")
	if !l.lastSweep.Equal(swept) {
		t.Errorf("lastSweep moved to %v within the same minute", l.lastSweep)
	}

	now = now.Add(time.Minute)
	l.Allow(ctx, "d@test.com")
	if l.lastSweep.Equal(swept) {
		t.Error("sweep should run again after a minute")
	}
	for _, k := range []string{"b@test.com", "c@test.com"} {
		if _, ok := l.counters[k]; ok {
			t.Errorf("expired window for %s should have been swept", k)
		}
	}
	if len(l.counters) != 1 {
		t.Errorf("counters = %d, want 1", len(l.counters))
	}
}

func TestInProcessLimiter_Disabled(t *testing.T) {
	l := NewInProcessLimiter(0)
	for i := 0; i < 100; i++ {
		if err := l.Allow(context.Background(), "k"); err != nil {
			t.Fatalf("disabled limiter rejected: %v", err)
		}
	}
}
