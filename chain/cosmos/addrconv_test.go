package cosmos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

func TestAddressConverter_ConvertToBytes(t *testing.T) {
	t.Parallel()

	terra := registry.ChainConfig{Name: "terra2", Family: registry.FamilyCosmos, Metadata: registry.Metadata{Bech32Prefix: "terra"}}

	tests := []struct {
		name    string
		address string
		wantLen int
		wantErr string
	}{
		{name: "contract address", address: "terra153366q50k7t8nn7gec00hg66crnhkdggpgdtaxltaq6xrutkkz3s992fw9", wantLen: 32},
		{name: "wrong prefix", address: "inj1ghd753shjuwexxywmgs4xz7x2q732vcnxxynfn", wantErr: `prefix "inj", want "terra"`},
		{name: "bad checksum", address: "terra153366q50k7t8nn7gec00hg66crnhkdggpgdtaxltaq6xrutkkz3s992fw8", wantErr: "invalid cosmos address"},
		{name: "empty", address: "", wantErr: "invalid cosmos address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := AddressConverter{}.ConvertToBytes(terra, tt.address)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				var invalid *chain.InvalidAddressError
				require.ErrorAs(t, err, &invalid)

				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestAddressConverter_Supports(t *testing.T) {
	t.Parallel()

	assert.True(t, AddressConverter{}.Supports(registry.FamilyCosmos))
	assert.False(t, AddressConverter{}.Supports(registry.FamilyEVM))
}
