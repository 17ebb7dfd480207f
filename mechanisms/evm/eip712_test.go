package evm

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const testOwnerKey = "39f3c3220f1cca5d72e53aba4915adf8df91c850545e2bcde409485250ed1bcd"

var (
	testToken   = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	testSpender = common.HexToAddress("0x9876543210987654321098765432109876543210")
)

func testPermit(owner common.Address) Permit {
	return Permit{
		Owner:    owner,
		Spender:  testSpender,
		Value:    big.NewInt(100),
		Nonce:    big.NewInt(0),
		Deadline: big.NewInt(100000000000000),
	}
}

func TestTypeHashes(t *testing.T) {
	if got := PermitTypeHash().Hex(); got != "0x6e71edae12b1b97f4d1f60370fef10105fa2faae0126114a169c64845d6126c9" {
		t.Errorf("unexpected permit type hash: %s", got)
	}
	if got := eip712DomainTypeHash.Hex(); got != "0x8b73c3c69bb8fe3d512ecc4cf759cc79239f7b179b0ffacaa9a75d522b39400f" {
		t.Errorf("unexpected domain type hash: %s", got)
	}
}

func TestDomainSeparator(t *testing.T) {
	t.Run("Same inputs produce same separator", func(t *testing.T) {
		a, err := DomainSeparator("MyToken", big.NewInt(1), testToken)
		if err != nil {
			t.Fatalf("DomainSeparator failed: %v", err)
		}
		b, err := DomainSeparator("MyToken", big.NewInt(1), testToken)
		if err != nil {
			t.Fatalf("DomainSeparator failed: %v", err)
		}
		if a != b {
			t.Error("Same inputs should produce same separator")
		}
	})

	t.Run("Separator binds every field", func(t *testing.T) {
		base, _ := DomainSeparator("MyToken", big.NewInt(1), testToken)
		otherName, _ := DomainSeparator("OtherToken", big.NewInt(1), testToken)
		otherChain, _ := DomainSeparator("MyToken", big.NewInt(8453), testToken)
		otherContract, _ := DomainSeparator("MyToken", big.NewInt(1), testSpender)

		for name, h := range map[string]common.Hash{"name": otherName, "chain": otherChain, "contract": otherContract} {
			if h == base {
				t.Errorf("Changing %s should change the separator", name)
			}
		}
	})

	t.Run("Matches generic typed-data domain hash", func(t *testing.T) {
		sep, err := DomainSeparator("MyToken", big.NewInt(1), testToken)
		if err != nil {
			t.Fatalf("DomainSeparator failed: %v", err)
		}

		// The typed-data digest of a permit is keccak(0x1901 || sep || structHash),
		// so agreement of the full digests implies agreement of the separators.
		structHash, err := HashPermitStruct(testPermit(testSpender))
		if err != nil {
			t.Fatalf("HashPermitStruct failed: %v", err)
		}
		generic, err := HashEIP2612Permit(testPermit(testSpender), NewTokenDomain("MyToken", big.NewInt(1), testToken))
		if err != nil {
			t.Fatalf("HashEIP2612Permit failed: %v", err)
		}
		if !bytes.Equal(TypedDataDigest(sep, structHash).Bytes(), generic) {
			t.Error("abi-encoded and typed-data digests disagree")
		}
	})

	t.Run("Rejects missing or negative chain ID", func(t *testing.T) {
		if _, err := DomainSeparator("MyToken", nil, testToken); err == nil {
			t.Error("Expected error for nil chain ID")
		}
		if _, err := DomainSeparator("MyToken", big.NewInt(-1), testToken); err == nil {
			t.Error("Expected error for negative chain ID")
		}
	})
}

func TestPermitDigest(t *testing.T) {
	owner := common.HexToAddress("0x1234567890123456789012345678901234567890")

	t.Run("Valid permit produces 32-byte digest", func(t *testing.T) {
		digest, err := PermitDigest("MyToken", testToken, big.NewInt(1), testPermit(owner))
		if err != nil {
			t.Fatalf("Failed to build digest: %v", err)
		}
		if digest == (common.Hash{}) {
			t.Error("Expected non-zero digest")
		}
	})

	t.Run("Same inputs produce same digest", func(t *testing.T) {
		d1, _ := PermitDigest("MyToken", testToken, big.NewInt(1), testPermit(owner))
		d2, _ := PermitDigest("MyToken", testToken, big.NewInt(1), testPermit(owner))
		if d1 != d2 {
			t.Error("Same inputs should produce same digest")
		}
	})

	t.Run("Different nonce produces different digest", func(t *testing.T) {
		p := testPermit(owner)
		d1, _ := PermitDigest("MyToken", testToken, big.NewInt(1), p)
		p.Nonce = big.NewInt(1)
		d2, _ := PermitDigest("MyToken", testToken, big.NewInt(1), p)
		if d1 == d2 {
			t.Error("Different nonces should produce different digests")
		}
	})

	t.Run("Generic and abi digests agree", func(t *testing.T) {
		p := testPermit(owner)
		p.Value = MaxUint256()
		p.Nonce = big.NewInt(42)

		d1, err := PermitDigest("USD Coin", testToken, big.NewInt(8453), p)
		if err != nil {
			t.Fatalf("PermitDigest failed: %v", err)
		}
		d2, err := HashEIP2612Permit(p, NewTokenDomain("USD Coin", big.NewInt(8453), testToken))
		if err != nil {
			t.Fatalf("HashEIP2612Permit failed: %v", err)
		}
		if !bytes.Equal(d1.Bytes(), d2) {
			t.Errorf("digests disagree: %s vs %x", d1.Hex(), d2)
		}
	})

	t.Run("Out of range fields return error", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(p *Permit)
		}{
			{"nil value", func(p *Permit) { p.Value = nil }},
			{"negative nonce", func(p *Permit) { p.Nonce = big.NewInt(-1) }},
			{"deadline overflow", func(p *Permit) { p.Deadline = new(big.Int).Lsh(big.NewInt(1), 256) }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				p := testPermit(owner)
				tt.mutate(&p)
				if _, err := PermitDigest("MyToken", testToken, big.NewInt(1), p); err == nil {
					t.Error("Expected error")
				}
			})
		}
	})
}

func TestRecoverSigner(t *testing.T) {
	key, err := crypto.HexToECDSA(testOwnerKey)
	if err != nil {
		t.Fatalf("bad test key: %v", err)
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)

	digest, err := PermitDigest("MyToken", testToken, big.NewInt(1), testPermit(owner))
	if err != nil {
		t.Fatalf("PermitDigest failed: %v", err)
	}
	raw, err := crypto.Sign(digest[:], key)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	sig, err := SignatureFromBytes(raw)
	if err != nil {
		t.Fatalf("SignatureFromBytes failed: %v", err)
	}

	t.Run("Recovers owner with raw recovery id", func(t *testing.T) {
		got, ok := RecoverSigner(digest, sig)
		if !ok || got != owner {
			t.Errorf("expected %s, got %s (ok=%v)", owner.Hex(), got.Hex(), ok)
		}
	})

	t.Run("Recovers owner with 27/28 recovery id", func(t *testing.T) {
		shifted := sig
		shifted.V += RecoveryIDOffset
		got, ok := RecoverSigner(digest, shifted)
		if !ok || got != owner {
			t.Errorf("expected %s, got %s (ok=%v)", owner.Hex(), got.Hex(), ok)
		}
	})

	t.Run("Recovery is repeatable", func(t *testing.T) {
		a, _ := RecoverSigner(digest, sig)
		b, _ := RecoverSigner(digest, sig)
		if a != b {
			t.Error("Recovery should be deterministic")
		}
	})

	t.Run("Malformed v yields zero address", func(t *testing.T) {
		bad := sig
		bad.V = 0x99
		got, ok := RecoverSigner(digest, bad)
		if ok || got != (common.Address{}) {
			t.Errorf("expected invalid recovery, got %s", got.Hex())
		}
	})

	t.Run("High s is rejected", func(t *testing.T) {
		n := crypto.S256().Params().N
		s := new(big.Int).SetBytes(sig.S[:])
		high := new(big.Int).Sub(n, s)

		bad := sig
		high.FillBytes(bad.S[:])
		bad.V ^= 1
		if _, ok := RecoverSigner(digest, bad); ok {
			t.Error("expected malleated signature to be rejected")
		}
	})

	t.Run("Zero r is rejected", func(t *testing.T) {
		bad := sig
		bad.R = [32]byte{}
		if _, ok := RecoverSigner(digest, bad); ok {
			t.Error("expected zero r to be rejected")
		}
	})

	t.Run("Other digest recovers other address", func(t *testing.T) {
		other := testPermit(owner)
		other.Nonce = big.NewInt(1)
		otherDigest, _ := PermitDigest("MyToken", testToken, big.NewInt(1), other)
		got, ok := RecoverSigner(otherDigest, sig)
		if ok && got == owner {
			t.Error("signature must not validate for a different nonce")
		}
	})
}

func TestSignatureEncoding(t *testing.T) {
	var sig Signature
	for i := range sig.R {
		sig.R[i] = byte(i)
		sig.S[i] = byte(255 - i)
	}
	sig.V = 28

	parsed, err := ParseSignatureHex(BytesToHex(sig.Bytes()))
	if err != nil {
		t.Fatalf("ParseSignatureHex failed: %v", err)
	}
	if parsed != sig {
		t.Error("signature changed across hex encoding")
	}

	flipped := sig
	flipped.V = 1
	if flipped.Key() != sig.Key() {
		t.Error("Key must not depend on v")
	}

	if _, err := SignatureFromBytes(make([]byte, 64)); err == nil {
		t.Error("Expected error for short signature")
	}
}

func TestParseHelpers(t *testing.T) {
	if _, err := ParseAddress("0x1234"); err == nil {
		t.Error("Expected error for short address")
	}
	if _, err := ParseAddress("1234567890123456789012345678901234567890"); err == nil {
		t.Error("Expected error for missing 0x prefix")
	}
	addr, err := ParseAddress("0x1234567890123456789012345678901234567890")
	if err != nil || addr != common.HexToAddress("0x1234567890123456789012345678901234567890") {
		t.Errorf("ParseAddress failed: %v", err)
	}

	if _, err := ParseUint256("-1"); err == nil {
		t.Error("Expected error for negative value")
	}
	if _, err := ParseUint256(new(big.Int).Lsh(big.NewInt(1), 256).String()); err == nil {
		t.Error("Expected error for overflow")
	}
	v, err := ParseUint256(MaxUint256().String())
	if err != nil || v.Cmp(MaxUint256()) != 0 {
		t.Errorf("ParseUint256 failed on max: %v", err)
	}
}
