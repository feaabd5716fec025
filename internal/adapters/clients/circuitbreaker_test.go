package clients

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newTestBreaker(maxFailures, halfOpenLimit int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	cb := NewCircuitBreaker(config.CircuitBreakerConfig{
		MaxFailures:   maxFailures,
		Timeout:       30 * time.Second,
		HalfOpenLimit: halfOpenLimit,
	})
	cb.now = clock.Now

	return cb, clock
}

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb, _ := newTestBreaker(5, 3)

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_ZeroLimitsAreRaised(t *testing.T) {
	cb := NewCircuitBreaker(config.CircuitBreakerConfig{Timeout: time.Second})

	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, 2)

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(3, 2)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	tests := []struct {
		name      string
		afterOpen func(cb *CircuitBreaker, clock *fakeClock)
		want      State
	}{
		{
			name: "stays open during cool-down",
			afterOpen: func(cb *CircuitBreaker, clock *fakeClock) {
				clock.Advance(29 * time.Second)
				assert.False(t, cb.Allow())
			},
			want: StateOpen,
		},
		{
			name: "half-open after cool-down",
			afterOpen: func(cb *CircuitBreaker, clock *fakeClock) {
				clock.Advance(30 * time.Second)
				assert.True(t, cb.Allow())
			},
			want: StateHalfOpen,
		},
		{
			name: "closes after enough probe successes",
			afterOpen: func(cb *CircuitBreaker, clock *fakeClock) {
				clock.Advance(30 * time.Second)
				require.True(t, cb.Allow())
				require.True(t, cb.Allow())
				cb.RecordSuccess()
				cb.RecordSuccess()
			},
			want: StateClosed,
		},
		{
			name: "reopens on probe failure",
			afterOpen: func(cb *CircuitBreaker, clock *fakeClock) {
				clock.Advance(30 * time.Second)
				require.True(t, cb.Allow())
				cb.RecordFailure()
				assert.False(t, cb.Allow(), "cool-down restarts")
			},
			want: StateOpen,
		},
		{
			name: "limits concurrent probes",
			afterOpen: func(cb *CircuitBreaker, clock *fakeClock) {
				clock.Advance(30 * time.Second)
				require.True(t, cb.Allow())
				require.True(t, cb.Allow())
				assert.False(t, cb.Allow())
			},
			want: StateHalfOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(1, 2)

			cb.RecordFailure()
			require.Equal(t, StateOpen, cb.State())

			tt.afterOpen(cb, clock)

			assert.Equal(t, tt.want, cb.State())
		})
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	cb, _ := newTestBreaker(1, 1)

	changes := make(chan [2]State, 4)
	cb.OnStateChange(func(from, to State) { changes <- [2]State{from, to} })

	cb.RecordFailure()

	select {
	case change := <-changes:
		assert.Equal(t, [2]State{StateClosed, StateOpen}, change)
	case <-time.After(time.Second):
		t.Fatal("state change callback not invoked")
	}
}

func TestCircuitBreaker_Concurrent(t *testing.T) {
	cb, _ := newTestBreaker(1000, 5)

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if cb.Allow() {
				if i%2 == 0 {
					cb.RecordSuccess()
				} else {
					cb.RecordFailure()
				}
			}

			_ = cb.State()
		}()
	}

	wg.Wait()

	assert.Equal(t, StateClosed, cb.State())
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}
