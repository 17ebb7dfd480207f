package types

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	addressPattern = `^0x[0-9a-fA-F]{40}$`
	uintPattern    = `^[0-9]{1,78}$`
	bytes32Pattern = `^0x[0-9a-fA-F]{64}$`
	sigPattern     = `^0x[0-9a-fA-F]{130}$`
)

// JSON schemas of the request bodies. The MCP tools publish the same
// documents as their input schemas.
var (
	PermitSchema = `{
  "type": "object",
  "properties": {
    "owner":     {"type": "string", "pattern": "` + addressPattern + `"},
    "spender":   {"type": "string", "pattern": "` + addressPattern + `"},
    "value":     {"type": "string", "pattern": "` + uintPattern + `"},
    "deadline":  {"type": "string", "pattern": "` + uintPattern + `"},
    "nonce":     {"type": "string", "pattern": "` + uintPattern + `"},
    "v":         {"type": "integer", "minimum": 0, "maximum": 255},
    "r":         {"type": "string", "pattern": "` + bytes32Pattern + `"},
    "s":         {"type": "string", "pattern": "` + bytes32Pattern + `"},
    "signature": {"type": "string", "pattern": "` + sigPattern + `"}
  },
  "required": ["owner", "spender", "value", "deadline"],
  "anyOf": [
    {"required": ["v", "r", "s"]},
    {"required": ["signature"]}
  ]
}`

	PermitDigestSchema = objectSchema(
		[]string{"owner", "spender", "value", "deadline"},
		map[string]string{"owner": addressPattern, "spender": addressPattern, "value": uintPattern, "deadline": uintPattern},
	)

	ApproveSchema = objectSchema(
		[]string{"spender", "amount"},
		map[string]string{"spender": addressPattern, "amount": uintPattern},
	)

	TransferSchema = objectSchema(
		[]string{"to", "amount"},
		map[string]string{"to": addressPattern, "amount": uintPattern},
	)

	TransferFromSchema = objectSchema(
		[]string{"from", "to", "amount"},
		map[string]string{"from": addressPattern, "to": addressPattern, "amount": uintPattern},
	)

	EmergencyAddressSchema = objectSchema(
		[]string{"address"},
		map[string]string{"address": addressPattern},
	)

	MintSchema = objectSchema(
		[]string{"to", "amount"},
		map[string]string{"to": addressPattern, "amount": uintPattern},
	)

	BurnSchema = objectSchema(
		[]string{"from", "amount"},
		map[string]string{"from": addressPattern, "amount": uintPattern},
	)

	// Read-only lookups used by the MCP tools
	OwnerSchema = objectSchema(
		[]string{"owner"},
		map[string]string{"owner": addressPattern},
	)

	AccountSchema = objectSchema(
		[]string{"account"},
		map[string]string{"account": addressPattern},
	)

	AllowanceSchema = objectSchema(
		[]string{"owner", "spender"},
		map[string]string{"owner": addressPattern, "spender": addressPattern},
	)

	EmptySchema = `{"type": "object", "properties": {}}`
)

// objectSchema builds a schema of required string properties with patterns.
func objectSchema(required []string, patterns map[string]string) string {
	props := make([]string, 0, len(required))
	quoted := make([]string, 0, len(required))
	for _, name := range required {
		props = append(props, fmt.Sprintf(`"%s": {"type": "string", "pattern": "%s"}`, name, patterns[name]))
		quoted = append(quoted, `"`+name+`"`)
	}
	return fmt.Sprintf(`{"type": "object", "properties": {%s}, "required": [%s]}`,
		strings.Join(props, ", "), strings.Join(quoted, ", "))
}

// ValidationError lists every schema violation of a document
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Errors, "; ")
}

// Validate checks document against a JSON schema.
// Returns a *ValidationError when the document does not conform.
func Validate(schema string, document []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &ValidationError{Errors: []string{fmt.Sprintf("schema validation failed: %v", err)}}
	}

	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return &ValidationError{Errors: errs}
}
