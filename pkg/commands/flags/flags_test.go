package flags

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistentFlags(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: "root"}
	Config(root, "wormhole.yml")
	Environment(root)

	var gotConfig, gotEnv string
	child := &cobra.Command{
		Use: "child",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gotConfig = MustString(cmd.Flags().GetString("config"))
			gotEnv = MustString(cmd.Flags().GetString("environment"))

			return nil
		},
	}
	JSON(child)
	root.AddCommand(child)

	root.SetArgs([]string{"child", "-c", "other.yml", "-e", "mainnet"})
	require.NoError(t, root.Execute())

	assert.Equal(t, "other.yml", gotConfig)
	assert.Equal(t, "mainnet", gotEnv)
	assert.False(t, MustBool(child.Flags().GetBool("json")))
}

func TestConfig_Default(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{Use: "root"}
	Config(cmd, "wormhole.yml")

	f := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, f)
	assert.Equal(t, "c", f.Shorthand)
	assert.Equal(t, "wormhole.yml", f.DefValue)
}
