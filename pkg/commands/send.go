package commands

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

type sendFlags struct {
	from, to    string
	recipient   string
	sender      string
	amount      string
	relayerFee  string
	decimals    int
	token       string
	tokenChain  string
	payload     string
	waitVAA     bool
	vaaEncoding string
	timeout     time.Duration
}

func (f sendFlags) validate() error {
	var errs []error
	required := []struct{ name, value string }{
		{"from", f.from}, {"to", f.to}, {"recipient", f.recipient}, {"amount", f.amount},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("--%s is required", r.name))
		}
	}
	if f.decimals > 255 {
		errs = append(errs, fmt.Errorf("--decimals %d is out of range", f.decimals))
	}
	if f.token != "" && f.decimals < 0 {
		errs = append(errs, errors.New("--decimals is required with --token"))
	}

	return errors.Join(errs...)
}

// Send creates the send command.
func (c *Commands) Send() *cobra.Command {
	var f sendFlags

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Transfer tokens through the token bridge",
		Long: "Transfer tokens through the token bridge. Amounts are in whole tokens and are scaled\n" +
			"by --decimals, which defaults to the native decimals of the source chain.\n\n" +
			"Sends from Cosmos chains print the unsigned messages to sign with your own wallet.",
		Example: "  wormhole-connect send --from ethereum --to fuji --amount 0.01 \\\n" +
			"    --recipient 0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1 --wait-vaa",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := f.validate(); err != nil {
				return err
			}

			return c.runSend(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.from, "from", "", "Source chain name or id (required)")
	cmd.Flags().StringVar(&f.to, "to", "", "Destination chain name or id (required)")
	cmd.Flags().StringVar(&f.recipient, "recipient", "", "Recipient address on the destination chain (required)")
	cmd.Flags().StringVar(&f.sender, "sender", "", "Sender address. Required for Cosmos chains, checked against the signer otherwise")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount in whole tokens, e.g. 1.5 (required)")
	cmd.Flags().StringVar(&f.relayerFee, "relayer-fee", "", "Relayer fee in whole tokens")
	cmd.Flags().IntVar(&f.decimals, "decimals", -1, "Decimals of the token. Defaults to the native decimals of the source chain")
	cmd.Flags().StringVar(&f.token, "token", "", "Token address on its origin chain. Empty sends the native asset")
	cmd.Flags().StringVar(&f.tokenChain, "token-chain", "", "Origin chain of --token. Defaults to the source chain")
	cmd.Flags().StringVar(&f.payload, "payload", "", "Hex payload delivered with the transfer")
	cmd.Flags().BoolVar(&f.waitVAA, "wait-vaa", false, "Wait for the signed VAA of the transfer and print it")
	cmd.Flags().StringVar(&f.vaaEncoding, "encoding", "hex", "VAA output encoding: hex or base64")
	cmd.Flags().DurationVar(&f.timeout, "timeout", defaultTimeout, "Overall timeout")

	return cmd
}

func (c *Commands) runSend(cmd *cobra.Command, f sendFlags) error {
	s, err := c.open(cmd)
	if err != nil {
		return err
	}
	defer s.close(cmd.Context())

	from, err := s.wh.Registry().Resolve(f.from)
	if err != nil {
		return err
	}
	decimals := from.Metadata.NativeDecimals
	if f.decimals >= 0 {
		decimals = uint8(f.decimals)
	}

	req := chain.TransferRequest{
		Token:       chain.Native,
		FromChain:   string(from.Name),
		FromAddress: f.sender,
		ToChain:     f.to,
		ToAddress:   f.recipient,
	}
	if f.token != "" {
		req.Token = chain.TokenID{Chain: from.Name, Address: f.token}
		if f.tokenChain != "" {
			origin, rerr := s.wh.Registry().Resolve(f.tokenChain)
			if rerr != nil {
				return rerr
			}
			req.Token.Chain = origin.Name
		}
	}
	if req.Amount, err = toBaseUnits(f.amount, decimals); err != nil {
		return err
	}
	if f.relayerFee != "" {
		if req.RelayerFee, err = toBaseUnits(f.relayerFee, decimals); err != nil {
			return err
		}
	}
	if f.payload != "" {
		if req.Payload, err = hex.DecodeString(strings.TrimPrefix(f.payload, "0x")); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	if err = c.deps.Connector(ctx, s.wh, s.cfg, string(from.Name), from.Family != registry.FamilyCosmos, s.lggr); err != nil {
		return fmt.Errorf("failed to connect %s: %w", from.Name, err)
	}

	s.lggr.Infow("Sending", "from", from.Name, "to", f.to, "amount", f.amount, "decimals", decimals, "token", req.Token.String())
	receipt, err := s.wh.Send(ctx, req)
	if err != nil {
		return err
	}
	if err = printJSON(cmd, receipt); err != nil {
		return err
	}
	if !f.waitVAA {
		return nil
	}

	seq, err := s.wh.ParseSequenceFromLog(ctx, string(from.Name), receipt)
	if err != nil {
		return err
	}
	emitter, err := s.wh.GetTokenBridgeEmitter(string(from.Name))
	if err != nil {
		return err
	}
	s.lggr.Infow("Waiting for VAA", "chain", from.Name, "emitter", emitter, "sequence", seq)

	vaa, err := s.wh.GetSignedVAAWithRetry(ctx, string(from.Name), emitter, seq, s.cfg.Attestation.RetryInterval, s.cfg.Attestation.MaxAttempts)
	if err != nil {
		return err
	}

	return printVAA(cmd, vaa, f.vaaEncoding)
}
