package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/contracts"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// Contract is a bound Wormhole contract.
type Contract struct {
	*bind.BoundContract

	Name    string
	Address common.Address
	ABI     abi.ABI
	Client  OnchainClient
}

// NewResolver returns a contract resolver binding the core, token bridge and NFT bridge
// contracts of EVM chains to their registered provider.
func NewResolver(conns *connection.Manager) *contracts.Resolver[*Contract] {
	return contracts.NewResolver(conns, bindContract)
}

func bindContract(cfg registry.ChainConfig, name, address string, provider any) (*Contract, error) {
	client, ok := provider.(OnchainClient)
	if !ok {
		return nil, &chain.ConnectionTypeError{Chain: cfg.Name, Kind: "provider", Want: "evm.OnchainClient", Got: provider}
	}

	addr, err := ParseAddress(cfg, address)
	if err != nil {
		return nil, fmt.Errorf("contract %s: %w", name, err)
	}

	var parsed abi.ABI
	switch name {
	case registry.ContractCore:
		parsed = CoreABI
	case registry.ContractTokenBridge:
		parsed = TokenBridgeABI
	case registry.ContractNFTBridge:
		parsed = NFTBridgeABI
	default:
		return nil, fmt.Errorf("unknown contract %q", name)
	}

	return &Contract{
		BoundContract: bind.NewBoundContract(addr, parsed, client, client, client),
		Name:          name,
		Address:       addr,
		ABI:           parsed,
		Client:        client,
	}, nil
}
