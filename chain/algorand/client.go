package algorand

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Client is the algod surface the context needs.
type Client interface {
	SuggestedParams(ctx context.Context) (types.SuggestedParams, error)
	IsOptedIn(ctx context.Context, address string, appID uint64) (bool, error)
	// SendRawTransactions submits signed transactions as one group.
	SendRawTransactions(ctx context.Context, signed ...[]byte) error
	WaitForConfirmation(ctx context.Context, txID string) (models.PendingTransactionInfoResponse, error)
}

const defaultWaitRounds = 10

// AlgodClient implements Client over an algod REST client.
type AlgodClient struct {
	algod      *algod.Client
	waitRounds uint64
}

var _ Client = (*AlgodClient)(nil)

// NewAlgodClient creates a client of the algod node at url.
func NewAlgodClient(url, token string) (*AlgodClient, error) {
	c, err := algod.MakeClient(url, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create algod client: %w", err)
	}

	return &AlgodClient{algod: c, waitRounds: defaultWaitRounds}, nil
}

func (c *AlgodClient) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	return c.algod.SuggestedParams().Do(ctx)
}

func (c *AlgodClient) IsOptedIn(ctx context.Context, address string, appID uint64) (bool, error) {
	info, err := c.algod.AccountInformation(address).Do(ctx)
	if err != nil {
		return false, err
	}

	return slices.ContainsFunc(info.AppsLocalState, func(s models.ApplicationLocalState) bool {
		return s.Id == appID
	}), nil
}

func (c *AlgodClient) SendRawTransactions(ctx context.Context, signed ...[]byte) error {
	_, err := c.algod.SendRawTransaction(bytes.Join(signed, nil)).Do(ctx)
	return err
}

func (c *AlgodClient) WaitForConfirmation(ctx context.Context, txID string) (models.PendingTransactionInfoResponse, error) {
	return transaction.WaitForConfirmation(c.algod, txID, c.waitRounds, ctx)
}

// AccountFromMnemonic recovers an account from its 25 word mnemonic.
func AccountFromMnemonic(words string) (crypto.Account, error) {
	sk, err := mnemonic.ToPrivateKey(words)
	if err != nil {
		return crypto.Account{}, fmt.Errorf("invalid algorand mnemonic: %w", err)
	}

	return crypto.AccountFromPrivateKey(sk)
}
