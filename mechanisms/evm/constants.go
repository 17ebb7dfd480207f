package evm

const (
	// EIP712DomainType is the canonical EIP-712 domain type string.
	EIP712DomainType = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"

	// PermitType is the EIP-2612 Permit type string.
	PermitType = "Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"

	// PermitPrimaryType is the primary type name used when signing a Permit
	PermitPrimaryType = "Permit"

	// DomainVersion is the version string every token domain is bound to
	DomainVersion = "1"

	// SignatureLength is the length of an r||s||v signature
	SignatureLength = 65

	// Recovery ids as produced by Ethereum signers (27/28) and by raw secp256k1 (0/1)
	RecoveryIDOffset = 27
)

var (
	// EIP712DomainTypes defines the full EIP-712 domain used by permit tokens.
	// Field order MUST match EIP712DomainType.
	EIP712DomainTypes = []TypedDataField{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}

	// EIP2612PermitTypes defines the EIP-712 fields of the Permit struct.
	// Field order MUST match PermitType.
	EIP2612PermitTypes = []TypedDataField{
		{Name: "owner", Type: "address"},
		{Name: "spender", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}
)

// GetEIP2612EIP712Types returns the complete EIP-712 types map for Permit signing.
// Use this function instead of defining types locally to ensure consistency.
func GetEIP2612EIP712Types() map[string][]TypedDataField {
	return map[string][]TypedDataField{
		"EIP712Domain":    EIP712DomainTypes,
		PermitPrimaryType: EIP2612PermitTypes,
	}
}
