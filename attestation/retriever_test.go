package attestation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wormhole-foundation/wormhole-connect-go/attestation"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
)

// fakeTimer fires immediately and records every requested wait.
type fakeTimer struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (f *fakeTimer) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.waits = append(f.waits, d)
	f.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- time.Time{}

	return ch
}

func (f *fakeTimer) recorded() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]time.Duration(nil), f.waits...)
}

// scripted answers lookups from a list of results. The last one repeats.
type scripted struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (s *scripted) GetSignedVAA(context.Context, attestation.MessageID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.results[min(s.calls, len(s.results)-1)]
	s.calls++
	if err != nil {
		return nil, err
	}

	return []byte("vaa"), nil
}

func TestRetriever_ThreeAttemptsThenLastError(t *testing.T) {
	t.Parallel()

	timer := &fakeTimer{}
	transport := &scripted{results: []error{attestation.ErrVAANotFound}}
	lggr, logs := logger.TestObserved(t, zapcore.DebugLevel)
	r := attestation.NewRetriever(transport, lggr, attestation.WithTimer(timer))

	_, err := r.GetSignedVAAWithRetry(t.Context(), 2, testEmitter, "1", time.Second, 3)
	require.ErrorIs(t, err, attestation.ErrVAANotFound)

	assert.Equal(t, 3, transport.calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, timer.recorded(),
		"waits the interval before every lookup")
	assert.GreaterOrEqual(t, logs.FilterMessage("VAA not signed yet").Len(), 2)
}

func TestRetriever_SucceedsAfterNotFound(t *testing.T) {
	t.Parallel()

	timer := &fakeTimer{}
	transport := &scripted{results: []error{attestation.ErrVAANotFound, attestation.ErrVAANotFound, nil}}
	r := attestation.NewRetriever(transport, logger.Test(t), attestation.WithTimer(timer))

	vaa, err := r.GetSignedVAAWithRetry(t.Context(), 2, testEmitter, "1", 500*time.Millisecond, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("vaa"), vaa)
	assert.Equal(t, 3, transport.calls)
	assert.Len(t, timer.recorded(), 3)
}

func TestRetriever_TransportErrorsBackOff(t *testing.T) {
	t.Parallel()

	timer := &fakeTimer{}
	boom := errors.New("connection refused")
	transport := &scripted{results: []error{boom}}
	r := attestation.NewRetriever(transport, logger.Test(t),
		attestation.WithTimer(timer), attestation.WithMaxBackoff(4*time.Second))

	_, err := r.GetSignedVAAWithRetry(t.Context(), 2, testEmitter, "1", time.Second, 6)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 6, transport.calls)

	waits := timer.recorded()
	require.Len(t, waits, 6)
	assert.Equal(t, time.Second, waits[0])
	for i := 1; i < len(waits); i++ {
		assert.GreaterOrEqual(t, waits[i], waits[i-1], "backoff never shrinks")
		assert.LessOrEqual(t, waits[i], 4*time.Second, "backoff is capped")
	}
	assert.Equal(t, 4*time.Second, waits[len(waits)-1])
}

func TestRetriever_NotFoundResetsToInterval(t *testing.T) {
	t.Parallel()

	timer := &fakeTimer{}
	boom := errors.New("503")
	transport := &scripted{results: []error{boom, boom, boom, attestation.ErrVAANotFound, nil}}
	r := attestation.NewRetriever(transport, logger.Test(t), attestation.WithTimer(timer))

	_, err := r.GetSignedVAAWithRetry(t.Context(), 2, testEmitter, "1", time.Second, 0)
	require.NoError(t, err)

	waits := timer.recorded()
	require.Len(t, waits, 5)
	assert.Greater(t, waits[3], time.Second)
	assert.Equal(t, time.Second, waits[4], "a not found answer waits the plain interval")
}

func TestRetriever_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	transport := &scripted{results: []error{attestation.ErrVAANotFound}}
	r := attestation.NewRetriever(transport, logger.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := r.GetSignedVAAWithRetry(ctx, 2, testEmitter, "1", time.Millisecond, 0)
		done <- err
	}()

	require.Eventually(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()

		return transport.calls >= 2
	}, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("retriever did not stop after cancel")
	}
}

func TestRetriever_InvalidMessageID(t *testing.T) {
	t.Parallel()

	transport := &scripted{results: []error{nil}}
	r := attestation.NewRetriever(transport, logger.Nop(), attestation.WithTimer(&fakeTimer{}))

	_, err := r.GetSignedVAAWithRetry(t.Context(), 2, "0xabc", "1", time.Second, 1)
	require.ErrorContains(t, err, "invalid emitter address")
	assert.Zero(t, transport.calls)
}
