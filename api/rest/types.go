package rest

import (
	"github.com/abcfe/abcfe-keyring/custody"
	"github.com/abcfe/abcfe-keyring/keystore"
)

// General response structure
type RestResp struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"` // stable error kind for the UI
}

type StatusResp struct {
	Status  keystore.Status `json:"status"`
	ChainID string          `json:"chainId,omitempty"`
	Path    string          `json:"path,omitempty"`
}

type CreateKeyReq struct {
	Mnemonic string `json:"mnemonic"`
	Password string `json:"password"`
}

type MnemonicResp struct {
	Mnemonic string `json:"mnemonic"`
}

type UnlockReq struct {
	Password string `json:"password"`
}

type SetPathReq struct {
	ChainID string `json:"chainId"`
	Account uint32 `json:"account"`
	Index   uint32 `json:"index"`
}

// Key response, byte fields hex encoded
type KeyResp struct {
	Algo          string `json:"algo"`
	PubKey        string `json:"pubKey"`
	Address       string `json:"address"`
	Bech32Address string `json:"bech32Address"`
	Path          string `json:"path"`
}

type ResolvedResp struct {
	ID       string `json:"id"`
	Resolved bool   `json:"resolved"`
}

type ApprovalsResp struct {
	Unlock   []string `json:"unlock"`
	TxConfig []string `json:"txConfig"`
	Sign     []string `json:"sign"`
}

type SignRequestResp struct {
	ID          string `json:"id"`
	ChainID     string `json:"chainId"`
	Message     string `json:"message"`               // hex
	MessageText string `json:"messageText,omitempty"` // set when the message is valid UTF-8
}

type TxConfigRequestResp struct {
	ID     string                  `json:"id"`
	Config custody.TxBuilderConfig `json:"config"`
}

// Bridge requests

type EnableReq struct {
	ChainID string `json:"chainId"`
}

type CheckAddressReq struct {
	ChainID string `json:"chainId"`
	Address string `json:"address"`
}

type RequestTxConfigReq struct {
	ID         string                  `json:"id"`
	Config     custody.TxBuilderConfig `json:"config"`
	OpenPrompt *bool                   `json:"openPrompt,omitempty"` // default true
}

type RequestSignReq struct {
	ID         string `json:"id"`
	ChainID    string `json:"chainId"`
	Message    string `json:"message"` // hex
	OpenPrompt *bool  `json:"openPrompt,omitempty"`
}

type SignResp struct {
	ID        string `json:"id"`
	Signature string `json:"signature"` // hex r||s
	PubKey    string `json:"pubKey"`
}
