package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Permit represents the EIP-2612 Permit message.
// It is never persisted; it only exists while a digest is built and a
// signature is checked against it.
type Permit struct {
	Owner    common.Address `json:"owner"`
	Spender  common.Address `json:"spender"`
	Value    *big.Int       `json:"value"`    // Allowance to grant, uint256
	Nonce    *big.Int       `json:"nonce"`    // Owner's tracked nonce, uint256
	Deadline *big.Int       `json:"deadline"` // Unix timestamp, uint256
}

// Signature is a secp256k1 signature split into recovery id and scalars
type Signature struct {
	V uint8
	R [32]byte
	S [32]byte
}

// SignatureFromBytes splits a 65-byte r||s||v signature.
func SignatureFromBytes(sig []byte) (Signature, error) {
	if len(sig) != SignatureLength {
		return Signature{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	var out Signature
	copy(out.R[:], sig[:32])
	copy(out.S[:], sig[32:64])
	out.V = sig[64]
	return out, nil
}

// Bytes returns the signature as r||s||v.
func (s Signature) Bytes() []byte {
	out := make([]byte, SignatureLength)
	copy(out[:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

// Key identifies the signature independently of its v encoding.
// Low-s is enforced on recovery, so (r, s) is unique per signed digest.
func (s Signature) Key() common.Hash {
	return crypto.Keccak256Hash(s.R[:], s.S[:])
}

// ClientEvmSigner defines the interface for client-side EVM signing operations
type ClientEvmSigner interface {
	// Address returns the signer's Ethereum address
	Address() string

	// SignTypedData signs EIP-712 typed data
	SignTypedData(ctx context.Context, domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error)
}

// TypedDataDomain represents the EIP-712 domain separator
type TypedDataDomain struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	ChainID           *big.Int `json:"chainId"`
	VerifyingContract string   `json:"verifyingContract"`
}

// TypedDataField represents a field in EIP-712 typed data
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NewTokenDomain builds the domain a permit token signs under.
func NewTokenDomain(name string, chainID *big.Int, verifyingContract common.Address) TypedDataDomain {
	return TypedDataDomain{
		Name:              name,
		Version:           DomainVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract.Hex(),
	}
}
