/*
Package chain defines the family independent types shared by every chain context.

# Overview

A chain context knows how to send token bridge transfers from one chain family and how to read
the Wormhole messages those transfers publish. Every family package (evm, solana, cosmos,
algorand, aptos, near) provides a Context satisfying the Context interface of this package:

	type Context interface {
		Family() registry.Family
		Send(ctx context.Context, req TransferRequest) (Receipt, error)
		SendWithPayload(ctx context.Context, req TransferRequest) (Receipt, error)
		ParseSequenceFromLog(ctx context.Context, receipt Receipt, chain string) (Sequence, error)
		ParseSequencesFromLog(ctx context.Context, receipt Receipt, chain string) ([]Sequence, error)
		GetEmitterAddress(chain, address string) (string, error)
	}

# Transfers

A TransferRequest names the token by its origin chain and address. Native selects the gas
asset of the source chain:

	req := chain.TransferRequest{
		Token:     chain.Native,
		Amount:    "1000000000000000000",
		FromChain: "ethereum",
		ToChain:   "fuji",
		ToAddress: "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1",
	}

Amounts are decimal strings of base units. Validation happens before any network call and
fails with InvalidAmountError or InvalidAddressError.

# Receipts

Receipt is deliberately untyped. Each family documents the concrete receipt it returns from
Send and accepts in ParseSequenceFromLog, for example *types.Receipt for EVM chains.

# Errors

The typed errors of this package (MissingContractsError, NoProviderError, NoSignerError,
UnsupportedFamilyError) are returned unwrapped or wrapped with %w, so callers match them with
errors.As.
*/
package chain
