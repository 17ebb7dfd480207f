package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

var (
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte(EIP712DomainType))
	permitTypeHash       = crypto.Keccak256Hash([]byte(PermitType))
	domainVersionHash    = crypto.Keccak256Hash([]byte(DomainVersion))

	bytes32Type = mustNewType("bytes32")
	uint256Type = mustNewType("uint256")
	addressType = mustNewType("address")

	// abi.encode(bytes32 typeHash, bytes32 nameHash, bytes32 versionHash, uint256 chainId, address verifyingContract)
	domainArguments = abi.Arguments{
		{Type: bytes32Type},
		{Type: bytes32Type},
		{Type: bytes32Type},
		{Type: uint256Type},
		{Type: addressType},
	}

	// abi.encode(bytes32 typeHash, address owner, address spender, uint256 value, uint256 nonce, uint256 deadline)
	permitArguments = abi.Arguments{
		{Type: bytes32Type},
		{Type: addressType},
		{Type: addressType},
		{Type: uint256Type},
		{Type: uint256Type},
		{Type: uint256Type},
	}
)

func mustNewType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", name, err))
	}
	return t
}

// PermitTypeHash returns keccak256 of PermitType.
func PermitTypeHash() common.Hash {
	return permitTypeHash
}

// DomainSeparator computes the EIP-712 domain separator of a permit token:
//
//	keccak256(abi.encode(
//	    keccak256("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
//	    keccak256(name), keccak256("1"), chainId, verifyingContract))
//
// The result is deterministic for identical inputs.
func DomainSeparator(name string, chainID *big.Int, verifyingContract common.Address) (common.Hash, error) {
	if err := checkUint256("chainId", chainID); err != nil {
		return common.Hash{}, err
	}

	encoded, err := domainArguments.Pack(
		eip712DomainTypeHash,
		crypto.Keccak256Hash([]byte(name)),
		domainVersionHash,
		chainID,
		verifyingContract,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode domain: %w", err)
	}

	return crypto.Keccak256Hash(encoded), nil
}

// HashPermitStruct computes the EIP-712 struct hash of a Permit message.
func HashPermitStruct(permit Permit) (common.Hash, error) {
	if err := checkUint256("value", permit.Value); err != nil {
		return common.Hash{}, err
	}
	if err := checkUint256("nonce", permit.Nonce); err != nil {
		return common.Hash{}, err
	}
	if err := checkUint256("deadline", permit.Deadline); err != nil {
		return common.Hash{}, err
	}

	encoded, err := permitArguments.Pack(
		permitTypeHash,
		permit.Owner,
		permit.Spender,
		permit.Value,
		permit.Nonce,
		permit.Deadline,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode permit: %w", err)
	}

	return crypto.Keccak256Hash(encoded), nil
}

// TypedDataDigest combines a domain separator and a struct hash:
// keccak256("\x19\x01" || domainSeparator || structHash)
func TypedDataDigest(domainSeparator, structHash common.Hash) common.Hash {
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSeparator[:], structHash[:])
}

// PermitDigest builds the 32-byte digest an owner signs to grant a permit.
//
// Args:
//
//	name: The token name bound into the domain
//	verifyingContract: The token address bound into the domain
//	chainID: The chain ID bound into the domain
//	permit: The permit fields including the nonce and deadline
//
// Returns:
//
//	32-byte digest suitable for signing or recovery
//	error if any uint256 field is missing or out of range
func PermitDigest(name string, verifyingContract common.Address, chainID *big.Int, permit Permit) (common.Hash, error) {
	domainSeparator, err := DomainSeparator(name, chainID, verifyingContract)
	if err != nil {
		return common.Hash{}, err
	}

	structHash, err := HashPermitStruct(permit)
	if err != nil {
		return common.Hash{}, err
	}

	return TypedDataDigest(domainSeparator, structHash), nil
}

// HashTypedData hashes typed data into the EIP-712 signing digest
//
// This function creates the EIP-712 hash that should be signed or verified.
// The hash is computed as: keccak256("\x19\x01" + domainSeparator + structHash)
//
// Args:
//
//	domain: The EIP-712 domain separator parameters
//	types: The type definitions for the structured data
//	primaryType: The name of the primary type being hashed
//	message: The message data to hash
//
// Returns:
//
//	32-byte hash suitable for signing or verification
//	error if hashing fails
func HashTypedData(
	domain TypedDataDomain,
	types map[string][]TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       make(apitypes.Types),
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract,
		},
		Message: message,
	}

	for typeName, fields := range types {
		typedFields := make([]apitypes.Type, len(fields))
		for i, field := range fields {
			typedFields[i] = apitypes.Type{
				Name: field.Name,
				Type: field.Type,
			}
		}
		typedData.Types[typeName] = typedFields
	}

	// Add EIP712Domain type if not present
	if _, exists := typedData.Types["EIP712Domain"]; !exists {
		typedData.Types["EIP712Domain"] = []apitypes.Type{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		}
	}

	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash struct: %w", err)
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	digest := TypedDataDigest(common.BytesToHash(domainSeparator), common.BytesToHash(dataHash))
	return digest.Bytes(), nil
}

// PermitMessage converts a Permit into the message map expected by HashTypedData
// and ClientEvmSigner.SignTypedData.
func PermitMessage(permit Permit) map[string]interface{} {
	return map[string]interface{}{
		"owner":    permit.Owner.Hex(),
		"spender":  permit.Spender.Hex(),
		"value":    permit.Value,
		"nonce":    permit.Nonce,
		"deadline": permit.Deadline,
	}
}

// HashEIP2612Permit hashes a Permit through the generic typed-data encoder.
// It yields the same digest as PermitDigest; signers use this form because
// it is what wallets implement.
func HashEIP2612Permit(permit Permit, domain TypedDataDomain) ([]byte, error) {
	if err := checkUint256("value", permit.Value); err != nil {
		return nil, err
	}
	if err := checkUint256("nonce", permit.Nonce); err != nil {
		return nil, err
	}
	if err := checkUint256("deadline", permit.Deadline); err != nil {
		return nil, err
	}
	return HashTypedData(domain, GetEIP2612EIP712Types(), PermitPrimaryType, PermitMessage(permit))
}
