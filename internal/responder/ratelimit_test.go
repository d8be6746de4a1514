package responder

import (
	"testing"
	"time"
)

func TestRateLimiter_ZeroDisables(t *testing.T) {
	l := newRateLimiter(0)
	for i := 0; i < 100; i++ {
		if !l.allow("u1") {
			t.Fatal("limit 0 must never deny")
		}
	}
}

func TestRateLimiter_EnforcesBudget(t *testing.T) {
	l := newRateLimiter(3)
	for i := 0; i < 3; i++ {
		if !l.allow("u1") {
			t.Fatalf("call %d denied within budget", i)
		}
	}
	if l.allow("u1") {
		t.Error("fourth call within the window should be denied")
	}
}

func TestRateLimiter_PerAuthor(t *testing.T) {
	l := newRateLimiter(1)
	if !l.allow("u1") {
		t.Fatal("first author denied")
	}
	if !l.allow("u2") {
		t.Error("second author should have an independent budget")
	}
	if l.allow("u1") {
		t.Error("first author should be over budget")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	l := newRateLimiter(1)
	l.authorTimes["u1"] = []time.Time{time.Now().Add(-2 * rateLimitWindow)}
	if !l.allow("u1") {
		t.Error("entries outside the window must not count")
	}
}
