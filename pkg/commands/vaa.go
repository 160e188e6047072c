package commands

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
)

const defaultTimeout = 10 * time.Minute

// VAA creates the vaa command.
func (c *Commands) VAA() *cobra.Command {
	var (
		encoding    string
		interval    time.Duration
		maxAttempts uint
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "vaa <chain> <emitter> <sequence>",
		Short: "Wait for the guardians to sign a message and print the VAA",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if encoding != "hex" && encoding != "base64" {
				return fmt.Errorf("unknown encoding %q", encoding)
			}
			s, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			if !cmd.Flags().Changed("interval") {
				interval = s.cfg.Attestation.RetryInterval
			}
			if !cmd.Flags().Changed("max-attempts") {
				maxAttempts = s.cfg.Attestation.MaxAttempts
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			vaa, err := s.wh.GetSignedVAAWithRetry(ctx, args[0], args[1], chain.Sequence(args[2]), interval, maxAttempts)
			if err != nil {
				return err
			}

			return printVAA(cmd, vaa, encoding)
		},
	}

	cmd.Flags().StringVar(&encoding, "encoding", "hex", "Output encoding: hex or base64")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Wait between lookups. Default is attestation.retry_interval")
	cmd.Flags().UintVar(&maxAttempts, "max-attempts", 0, "Lookups before giving up, 0 retries until the timeout. Default is attestation.max_attempts")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultTimeout, "Overall timeout")

	return cmd
}

func printVAA(cmd *cobra.Command, vaa []byte, encoding string) error {
	out := hex.EncodeToString(vaa)
	if encoding == "base64" {
		out = base64.StdEncoding.EncodeToString(vaa)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), out)

	return err
}
