package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestRetryPolicySucceedsAfterFailures(t *testing.T) {
	p := NewRetryPolicy(3, time.Millisecond)
	attempts := 0
	err := p.Do(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	p := NewRetryPolicy(2, time.Millisecond)
	attempts := 0
	err := p.Do(func() error {
		attempts++
		return errors.New("persistent")
	})
	if err == nil {
		t.Fatalf("expected error after exhaustion")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(2, 20*time.Millisecond)
	if !cb.Allow() {
		t.Fatalf("expected closed breaker to allow")
	}
	cb.OnError(errors.New("fail"))
	cb.OnError(errors.New("fail"))
	if cb.Allow() {
		t.Fatalf("expected breaker open after threshold")
	}
	time.Sleep(25 * time.Millisecond)
	if !cb.Allow() {
		t.Fatalf("expected breaker to allow after cooldown")
	}
	cb.OnSuccess()
	cb.OnError(errors.New("fail"))
	if !cb.Allow() {
		t.Fatalf("expected single failure below threshold to allow")
	}
}
