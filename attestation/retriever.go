package attestation

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

const (
	tracerName = "github.com/wormhole-foundation/wormhole-connect-go/attestation"

	// DefaultMaxBackoff caps the wait after transport errors.
	DefaultMaxBackoff = 30 * time.Second
)

type clock struct{}

func (clock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithTimer replaces the clock used between attempts.
func WithTimer(t retry.Timer) RetrieverOption {
	return func(r *Retriever) {
		r.timer = t
	}
}

// WithMaxBackoff caps the exponential wait after transport errors.
func WithMaxBackoff(d time.Duration) RetrieverOption {
	return func(r *Retriever) {
		r.maxBackoff = d
	}
}

// Retriever polls a Transport until a VAA is signed.
type Retriever struct {
	transport  Transport
	lggr       logger.Logger
	timer      retry.Timer
	maxBackoff time.Duration
}

// NewRetriever creates a Retriever over transport.
func NewRetriever(transport Transport, lggr logger.Logger, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		transport:  transport,
		lggr:       lggr.Named("attestation"),
		timer:      clock{},
		maxBackoff: DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// GetSignedVAAWithRetry waits interval, looks the VAA up, and repeats until the lookup
// succeeds or maxAttempts lookups failed. maxAttempts 0 retries until ctx is done. The most
// recent lookup error is returned.
//
// A not found answer waits interval before the next attempt. Any other error waits
// exponentially longer, up to the max backoff.
func (r *Retriever) GetSignedVAAWithRetry(
	ctx context.Context,
	emitterChain registry.ChainID,
	emitterAddress string,
	sequence chain.Sequence,
	interval time.Duration,
	maxAttempts uint,
) ([]byte, error) {
	id, err := NewMessageID(emitterChain, emitterAddress, sequence)
	if err != nil {
		return nil, err
	}

	select {
	case <-r.timer.After(interval):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	lggr := r.lggr.With("message", id.String())

	return retry.DoWithData(
		func() ([]byte, error) {
			return r.lookup(ctx, id)
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.WithTimer(r.timer),
		retry.LastErrorOnly(true),
		retry.DelayType(r.delay(interval)),
		retry.OnRetry(func(n uint, err error) {
			if errors.Is(err, ErrVAANotFound) {
				lggr.Debugw("VAA not signed yet", "attempt", n+1)
				return
			}
			lggr.Infow("VAA lookup failed", "attempt", n+1, "error", err)
		}),
	)
}

func (r *Retriever) delay(interval time.Duration) retry.DelayTypeFunc {
	return func(n uint, err error, _ *retry.Config) time.Duration {
		if errors.Is(err, ErrVAANotFound) {
			return interval
		}

		backoff := interval
		for i := uint(0); i < n && backoff < r.maxBackoff; i++ {
			backoff *= 2
		}

		return max(min(backoff, r.maxBackoff), interval)
	}
}

func (r *Retriever) lookup(ctx context.Context, id MessageID) ([]byte, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "attestation.GetSignedVAA", trace.WithAttributes(
		attribute.Int("vaa.emitter_chain", int(id.EmitterChain)),
		attribute.String("vaa.emitter_address", id.EmitterAddress),
		attribute.Int64("vaa.sequence", int64(id.Sequence)),
	))
	defer span.End()

	vaa, err := r.transport.GetSignedVAA(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	return vaa, nil
}
