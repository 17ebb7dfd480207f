package evm

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	numericPattern = regexp.MustCompile(`^[0-9]+$`)

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// MaxUint256 returns 2^256 - 1.
func MaxUint256() *big.Int {
	return new(big.Int).Set(maxUint256)
}

// IsUint256 reports whether v fits an unsigned 256-bit integer.
func IsUint256(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(maxUint256) <= 0
}

func checkUint256(field string, v *big.Int) error {
	if v == nil {
		return fmt.Errorf("missing %s", field)
	}
	if !IsUint256(v) {
		return fmt.Errorf("%s out of uint256 range: %s", field, v.String())
	}
	return nil
}

// ParseAddress parses a strict 0x-prefixed 20-byte hex address.
func ParseAddress(s string) (common.Address, error) {
	if !addressPattern.MatchString(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseUint256 parses a decimal string into a uint256 value.
func ParseUint256(s string) (*big.Int, error) {
	if !numericPattern.MatchString(s) {
		return nil, fmt.Errorf("invalid uint256: %q", s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || !IsUint256(v) {
		return nil, fmt.Errorf("invalid uint256: %q", s)
	}
	return v, nil
}

// HexToBytes decodes a hex string with or without the 0x prefix
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// BytesToHex encodes bytes as a 0x-prefixed hex string
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// ParseBytes32 decodes a 0x-prefixed 32-byte hex value.
func ParseBytes32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := HexToBytes(s)
	if err != nil {
		return out, fmt.Errorf("invalid bytes32: %w", err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("invalid bytes32 length: %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// ParseSignatureHex parses a 65-byte r||s||v hex signature.
func ParseSignatureHex(s string) (Signature, error) {
	b, err := HexToBytes(s)
	if err != nil {
		return Signature{}, fmt.Errorf("invalid signature hex: %w", err)
	}
	return SignatureFromBytes(b)
}
