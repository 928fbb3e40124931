package utils

import (
	"encoding/hex"
	"fmt"
	"strings"

	prt "github.com/abcfe/abcfe-keyring/protocol"
)

// BytesToHex 바이트 배열을 16진수 문자열로 변환
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// HexToBytes 16진수 문자열을 바이트 배열로 변환 (0x 접두사 허용)
func HexToBytes(str string) ([]byte, error) {
	str = strings.TrimPrefix(strings.TrimSpace(str), "0x")
	b, err := hex.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string: %w", err)
	}
	return b, nil
}

// SignatureToString 64바이트 서명을 16진수 문자열로 변환
func SignatureToString(sig []byte) string {
	return hex.EncodeToString(sig)
}

// StringToSignature 16진수 문자열을 서명 바이트로 변환
func StringToSignature(str string) ([]byte, error) {
	b, err := HexToBytes(str)
	if err != nil {
		return nil, err
	}
	if len(b) != prt.SignatureLength {
		return nil, fmt.Errorf("invalid signature length: %d (need %d bytes)", len(b), prt.SignatureLength)
	}
	return b, nil
}
