package cosmos

// Execute messages of the CosmWasm token bridge.

type depositTokensMsg struct {
	DepositTokens struct{} `json:"deposit_tokens"`
}

type increaseAllowanceMsg struct {
	IncreaseAllowance increaseAllowance `json:"increase_allowance"`
}

type increaseAllowance struct {
	Spender string  `json:"spender"`
	Amount  string  `json:"amount"`
	Expires expires `json:"expires"`
}

type expires struct {
	Never struct{} `json:"never"`
}

type assetInfo struct {
	NativeToken *nativeToken `json:"native_token,omitempty"`
	Token       *cw20Token   `json:"token,omitempty"`
}

type nativeToken struct {
	Denom string `json:"denom"`
}

type cw20Token struct {
	ContractAddr string `json:"contract_addr"`
}

type asset struct {
	Amount string    `json:"amount"`
	Info   assetInfo `json:"info"`
}

type initiateTransferMsg struct {
	InitiateTransfer *initiateTransfer `json:"initiate_transfer,omitempty"`
	WithPayload      *initiateTransfer `json:"initiate_transfer_with_payload,omitempty"`
}

// initiateTransfer is the body of both transfer messages. Payload is only set on
// initiate_transfer_with_payload.
type initiateTransfer struct {
	Asset          asset  `json:"asset"`
	RecipientChain uint16 `json:"recipient_chain"`
	Recipient      []byte `json:"recipient"`
	Fee            string `json:"fee"`
	Payload        []byte `json:"payload,omitempty"`
	Nonce          uint32 `json:"nonce"`
}
