// Package aptos implements the chain context of Aptos.
//
// The context expects an aptos.Client registered as provider and an aptos-go-sdk
// TransactionSigner, such as *aptos.Account, registered as signer. Tokens are identified by
// their coin type, e.g. "0x1::aptos_coin::AptosCoin". Receipts are *api.UserTransaction.
package aptos

import (
	aptoslib "github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/api"
)

// Client is the node surface the context needs. *aptos.NodeClient and *aptos.Client
// implement it.
type Client interface {
	BuildSignAndSubmitTransaction(sender aptoslib.TransactionSigner, payload aptoslib.TransactionPayload, options ...any) (*api.SubmitTransactionResponse, error)
	WaitForTransaction(txnHash string, options ...any) (*api.UserTransaction, error)
}

var _ Client = (*aptoslib.NodeClient)(nil)

// NativeCoinType is the coin type of APT.
const NativeCoinType = "0x1::aptos_coin::AptosCoin"
