package evm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// RecoverSigner recovers the address that signed digest.
//
// The boolean is false, and the address is the zero address, when the
// signature cannot be recovered: v outside {0, 1, 27, 28}, r or s outside
// the curve order, s in the upper half of the order, or no valid curve point.
// An unrecoverable signature is an ordinary outcome, never a panic; callers
// decide how to treat it.
func RecoverSigner(digest common.Hash, sig Signature) (common.Address, bool) {
	v := sig.V
	if v >= RecoveryIDOffset {
		v -= RecoveryIDOffset
	}
	if v > 1 {
		return common.Address{}, false
	}

	r := new(big.Int).SetBytes(sig.R[:])
	s := new(big.Int).SetBytes(sig.S[:])
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return common.Address{}, false
	}

	raw := make([]byte, SignatureLength)
	copy(raw[:32], sig.R[:])
	copy(raw[32:64], sig.S[:])
	raw[64] = v

	pubKey, err := crypto.SigToPub(digest[:], raw)
	if err != nil {
		return common.Address{}, false
	}

	return crypto.PubkeyToAddress(*pubKey), true
}
