// Package evm provides the EVM signature mechanism for permit tokens.
// It builds EIP-712 domain separators and EIP-2612 permit digests and
// recovers signers from secp256k1 signatures.
package evm
