package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wormhole-foundation/wormhole-connect-go/pkg/commands/flags"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// Chains creates the chains command group.
func (c *Commands) Chains() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chains",
		Short: "Inspect the chain registry",
	}
	cmd.AddCommand(c.chainsList(), c.chainsShow())

	return cmd
}

func (c *Commands) chainsList() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the chains of the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			chains := s.wh.Registry().Chains()
			if flags.MustBool(cmd.Flags().GetBool("json")) {
				return printJSON(cmd, chains)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tID\tFAMILY\tTOKEN BRIDGE")
			for _, ch := range chains {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", ch.Name, ch.ID, ch.Family, orDash(ch.Contracts.TokenBridge))
			}

			return w.Flush()
		},
	}
	flags.JSON(cmd)

	return cmd
}

func (c *Commands) chainsShow() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <chain>",
		Short: "Show the configuration of a chain by name or id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer s.close(cmd.Context())

			ch, err := s.wh.Registry().Resolve(args[0])
			if err != nil {
				return err
			}
			if flags.MustBool(cmd.Flags().GetBool("json")) {
				return printJSON(cmd, ch)
			}

			return printYAML(cmd, ch)
		},
	}
	flags.JSON(cmd)

	return cmd
}

func printYAML(cmd *cobra.Command, ch registry.ChainConfig) error {
	b, err := yaml.Marshal(ch)
	if err != nil {
		return fmt.Errorf("failed to marshal chain %s: %w", ch.Name, err)
	}
	_, err = cmd.OutOrStdout().Write(b)

	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
