package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const coreABIJSON = `[
	{"type":"event","name":"LogMessagePublished","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"sequence","type":"uint64","indexed":false},
		{"name":"nonce","type":"uint32","indexed":false},
		{"name":"payload","type":"bytes","indexed":false},
		{"name":"consistencyLevel","type":"uint8","indexed":false}]},
	{"type":"function","name":"messageFee","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"uint256"}]}
]`

const tokenBridgeABIJSON = `[
	{"type":"function","name":"wrapAndTransferETH","stateMutability":"payable","inputs":[
		{"name":"recipientChain","type":"uint16"},
		{"name":"recipient","type":"bytes32"},
		{"name":"arbiterFee","type":"uint256"},
		{"name":"nonce","type":"uint32"}],
		"outputs":[{"name":"sequence","type":"uint64"}]},
	{"type":"function","name":"wrapAndTransferETHWithPayload","stateMutability":"payable","inputs":[
		{"name":"recipientChain","type":"uint16"},
		{"name":"recipient","type":"bytes32"},
		{"name":"nonce","type":"uint32"},
		{"name":"payload","type":"bytes"}],
		"outputs":[{"name":"sequence","type":"uint64"}]},
	{"type":"function","name":"transferTokens","stateMutability":"payable","inputs":[
		{"name":"token","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"recipientChain","type":"uint16"},
		{"name":"recipient","type":"bytes32"},
		{"name":"arbiterFee","type":"uint256"},
		{"name":"nonce","type":"uint32"}],
		"outputs":[{"name":"sequence","type":"uint64"}]},
	{"type":"function","name":"transferTokensWithPayload","stateMutability":"payable","inputs":[
		{"name":"token","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"recipientChain","type":"uint16"},
		{"name":"recipient","type":"bytes32"},
		{"name":"nonce","type":"uint32"},
		{"name":"payload","type":"bytes"}],
		"outputs":[{"name":"sequence","type":"uint64"}]},
	{"type":"function","name":"wrappedAsset","stateMutability":"view","inputs":[
		{"name":"tokenChainId","type":"uint16"},
		{"name":"tokenAddress","type":"bytes32"}],
		"outputs":[{"name":"","type":"address"}]}
]`

const nftBridgeABIJSON = `[
	{"type":"function","name":"wrappedAsset","stateMutability":"view","inputs":[
		{"name":"tokenChainId","type":"uint16"},
		{"name":"tokenAddress","type":"bytes32"}],
		"outputs":[{"name":"","type":"address"}]}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[
		{"name":"owner","type":"address"},
		{"name":"spender","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[
		{"name":"spender","type":"address"},
		{"name":"amount","type":"uint256"}],
		"outputs":[{"name":"","type":"bool"}]}
]`

var (
	CoreABI        = mustParseABI(coreABIJSON)
	TokenBridgeABI = mustParseABI(tokenBridgeABIJSON)
	NFTBridgeABI   = mustParseABI(nftBridgeABIJSON)
	ERC20ABI       = mustParseABI(erc20ABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}

	return parsed
}
