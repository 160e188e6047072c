package config

import (
	"os"
	"strings"
)

const rpcEnvPrefix = "RPC_"

// rpcEnvOverrides returns the RPC_<CHAIN> variables of the environment keyed by lower case
// chain name, so RPC_ETHEREUM sets rpc.ethereum.
func rpcEnvOverrides() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || val == "" || !strings.HasPrefix(key, rpcEnvPrefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, rpcEnvPrefix))
		if name == "" {
			continue
		}
		out[name] = val
	}

	return out
}
