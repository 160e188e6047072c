package wormhole

import (
	"github.com/wormhole-foundation/wormhole-connect-go/attestation"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/aptos"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/cosmos"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/evm"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/solana"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
)

type options struct {
	lggr          logger.Logger
	transport     attestation.Transport
	retrieverOpts []attestation.RetrieverOption
	evmOpts       []evm.Option
	solanaOpts    []solana.Option
	cosmosOpts    []cosmos.Option
	aptosOpts     []aptos.Option
}

// Option configures a Context.
type Option func(*options)

// WithLogger sets the logger of the context and of every family context.
func WithLogger(lggr logger.Logger) Option {
	return func(o *options) {
		o.lggr = lggr
	}
}

// WithTransport sets the attestation transport. By default a RESTTransport over the
// registry's guardian hosts is used.
func WithTransport(t attestation.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithRetrieverOptions configures the attestation retriever.
func WithRetrieverOptions(opts ...attestation.RetrieverOption) Option {
	return func(o *options) {
		o.retrieverOpts = append(o.retrieverOpts, opts...)
	}
}

// WithEVMOptions configures the EVM context.
func WithEVMOptions(opts ...evm.Option) Option {
	return func(o *options) {
		o.evmOpts = append(o.evmOpts, opts...)
	}
}

// WithSolanaOptions configures the Solana context.
func WithSolanaOptions(opts ...solana.Option) Option {
	return func(o *options) {
		o.solanaOpts = append(o.solanaOpts, opts...)
	}
}

// WithCosmosOptions configures the Cosmos context.
func WithCosmosOptions(opts ...cosmos.Option) Option {
	return func(o *options) {
		o.cosmosOpts = append(o.cosmosOpts, opts...)
	}
}

// WithAptosOptions configures the Aptos context.
func WithAptosOptions(opts ...aptos.Option) Option {
	return func(o *options) {
		o.aptosOpts = append(o.aptosOpts, opts...)
	}
}
