package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Emitter creates the emitter command.
func (c *Commands) Emitter() *cobra.Command {
	return &cobra.Command{
		Use:   "emitter <chain> [address]",
		Short: "Print the 32 byte emitter address of a contract",
		Long: "Print the 32 byte emitter address of a native address as lowercase hex. Without an\n" +
			"address the token bridge of the chain is used.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			var emitter string
			if len(args) == 2 {
				emitter, err = s.wh.GetEmitterAddress(args[0], args[1])
			} else {
				emitter, err = s.wh.GetTokenBridgeEmitter(args[0])
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), emitter)

			return err
		},
	}
}
