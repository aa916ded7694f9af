package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTestError = errors.New("test error")

func testConfig() Config {
	return Config{
		FailureThreshold:    2,
		SuccessThreshold:    2,
		Timeout:             50 * time.Millisecond,
		MaxRequestsHalfOpen: 3,
	}
}

func TestCircuitBreaker_ClosedState_Success(t *testing.T) {
	cb := New(DefaultConfig())

	err := cb.Execute(context.Background(), func() error {
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state Closed, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_ClosedState_FailureCounted(t *testing.T) {
	cb := New(DefaultConfig())

	err := cb.Execute(context.Background(), func() error {
		return errTestError
	})

	if err == nil {
		t.Error("Expected error, got nil")
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state Closed, got: %v", cb.GetState())
	}
	if stats := cb.GetStats(); stats.FailureCount != 1 {
		t.Errorf("Expected failure count 1, got: %d", stats.FailureCount)
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error {
			return errTestError
		})
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("Expected state Open, got: %v", cb.GetState())
	}

	// Requests are rejected without running the function.
	ran := false
	err := cb.Execute(ctx, func() error {
		ran = true
		return nil
	})
	if err == nil {
		t.Error("Expected rejection while open")
	}
	if ran {
		t.Error("Function should not run while circuit is open")
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error {
			return errTestError
		})
	}

	time.Sleep(60 * time.Millisecond)

	// Successes in half-open close the breaker again.
	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Fatalf("Expected success in half-open, got: %v", err)
		}
	}

	if cb.GetState() != StateClosed {
		t.Errorf("Expected state Closed after recovery, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error {
			return errTestError
		})
	}

	time.Sleep(60 * time.Millisecond)

	_ = cb.Execute(ctx, func() error {
		return errTestError
	})

	if cb.GetState() != StateOpen {
		t.Errorf("Expected state Open after half-open failure, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	cb := New(testConfig())

	var mu sync.Mutex
	var transitions []State
	done := make(chan struct{}, 1)
	cb.OnStateChange(func(from, to State) {
		mu.Lock()
		transitions = append(transitions, to)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error {
			return errTestError
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("state change callback never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) == 0 || transitions[0] != StateOpen {
		t.Errorf("Expected transition to Open, got: %v", transitions)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error {
			return errTestError
		})
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected state Open, got: %v", cb.GetState())
	}

	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state Closed after reset, got: %v", cb.GetState())
	}
}

func TestCircuitBreaker_ConcurrentExecute(t *testing.T) {
	cb := New(DefaultConfig())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(ctx, func() error { return nil })
		}()
	}
	wg.Wait()

	if cb.GetState() != StateClosed {
		t.Errorf("Expected state Closed, got: %v", cb.GetState())
	}
}
