package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	tokenevm "github.com/mytoken-labs/mytoken/go/mechanisms/evm"
)

// ClientSigner implements tokenevm.ClientEvmSigner using an ECDSA private key.
// This provides client-side EIP-712 signing for creating permits.
type ClientSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewClientSignerFromPrivateKey creates a client signer from a hex-encoded private key.
//
// Args:
//
//	privateKeyHex: Hex-encoded private key (with or without "0x" prefix)
//
// Returns:
//
//	*ClientSigner ready to sign permits
//	Error if private key is invalid
//
// Example:
//
//	signer, err := evm.NewClientSignerFromPrivateKey("0x1234...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sig, err := signer.SignPermit(ctx, domain, permit)
func NewClientSignerFromPrivateKey(privateKeyHex string) (*ClientSigner, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return NewClientSigner(privateKey), nil
}

// NewClientSigner wraps an already parsed private key.
func NewClientSigner(privateKey *ecdsa.PrivateKey) *ClientSigner {
	return &ClientSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

// Address returns the Ethereum address of the signer.
func (s *ClientSigner) Address() string {
	return s.address.Hex()
}

// CommonAddress returns the signer address as a common.Address.
func (s *ClientSigner) CommonAddress() common.Address {
	return s.address
}

// SignTypedData signs EIP-712 typed data.
//
// Args:
//
//	ctx: Context for cancellation and timeout control
//	domain: EIP-712 domain separator
//	types: Type definitions for the structured data
//	primaryType: The primary type being signed
//	message: The message data to sign
//
// Returns:
//
//	65-byte signature (r, s, v) with v in {27, 28}
//	Error if signing fails
func (s *ClientSigner) SignTypedData(
	ctx context.Context,
	domain tokenevm.TypedDataDomain,
	types map[string][]tokenevm.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	digest, err := tokenevm.HashTypedData(domain, types, primaryType, message)
	if err != nil {
		return nil, err
	}

	return s.SignDigest(common.BytesToHash(digest))
}

// SignDigest signs a precomputed 32-byte digest.
func (s *ClientSigner) SignDigest(digest common.Hash) ([]byte, error) {
	signature, err := crypto.Sign(digest[:], s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	// Adjust v value for Ethereum (recovery ID 0/1 → 27/28)
	signature[64] += tokenevm.RecoveryIDOffset

	return signature, nil
}

// SignPermit signs an EIP-2612 permit under the given token domain and
// returns it split into v, r and s.
func (s *ClientSigner) SignPermit(
	ctx context.Context,
	domain tokenevm.TypedDataDomain,
	permit tokenevm.Permit,
) (tokenevm.Signature, error) {
	raw, err := s.SignTypedData(ctx, domain, tokenevm.GetEIP2612EIP712Types(), tokenevm.PermitPrimaryType, tokenevm.PermitMessage(permit))
	if err != nil {
		return tokenevm.Signature{}, fmt.Errorf("failed to sign EIP-2612 permit: %w", err)
	}
	return tokenevm.SignatureFromBytes(raw)
}

var _ tokenevm.ClientEvmSigner = (*ClientSigner)(nil)
