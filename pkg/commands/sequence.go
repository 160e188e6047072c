package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Sequence creates the sequence command.
func (c *Commands) Sequence() *cobra.Command {
	return &cobra.Command{
		Use:   "sequence <chain> <tx>",
		Short: "Print the message sequences a transaction emitted",
		Long:  "Fetch the receipt of a transaction and print every sequence its core contract emitted, one per line.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			chainName, tx := args[0], args[1]
			if err = c.deps.Connector(cmd.Context(), s.wh, s.cfg, chainName, false, s.lggr); err != nil {
				return fmt.Errorf("failed to connect %s: %w", chainName, err)
			}
			receipt, err := c.deps.ReceiptFetcher(cmd.Context(), s.wh, chainName, tx)
			if err != nil {
				return fmt.Errorf("failed to fetch receipt of %s: %w", tx, err)
			}

			seqs, err := s.wh.ParseSequencesFromLog(cmd.Context(), chainName, receipt)
			if err != nil {
				return err
			}
			for _, seq := range seqs {
				if _, err = fmt.Fprintln(cmd.OutOrStdout(), seq); err != nil {
					return err
				}
			}

			return nil
		},
	}
}
