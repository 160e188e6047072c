// Package evm implements the chain context of the EVM family.
//
// The context expects an OnchainClient registered as provider and a *bind.TransactOpts
// registered as signer on the connection manager. NewMultiClient builds a provider with RPC
// failover; NewKeyedTransactor and the provider package build signers.
package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// OnchainClient is an EVM chain client.
// For EVM specifically we can use existing geth interface
// to abstract chain clients.
type OnchainClient interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// Miner is implemented by clients that wait for transactions themselves, such as MultiClient.
type Miner interface {
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// waitMined waits for tx using the client's own strategy when it has one.
func waitMined(ctx context.Context, client OnchainClient, tx *types.Transaction) (*types.Receipt, error) {
	if m, ok := client.(Miner); ok {
		return m.WaitMined(ctx, tx)
	}

	return bind.WaitMined(ctx, client, tx)
}
