package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const (
	owner   = "0x1234567890123456789012345678901234567890"
	spender = "0x9876543210987654321098765432109876543210"
	word    = "0x" + "11111111111111111111111111111111" + "11111111111111111111111111111111"
)

func TestValidatePermit(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "v r s form",
			body: `{"owner":"` + owner + `","spender":"` + spender + `","value":"100","deadline":"100000000000000","v":27,"r":"` + word + `","s":"` + word + `"}`,
		},
		{
			name: "packed signature form",
			body: `{"owner":"` + owner + `","spender":"` + spender + `","value":"100","deadline":"1","signature":"0x` + strings.Repeat("ab", 65) + `"}`,
		},
		{
			name:    "missing signature",
			body:    `{"owner":"` + owner + `","spender":"` + spender + `","value":"100","deadline":"1"}`,
			wantErr: true,
		},
		{
			name:    "negative value",
			body:    `{"owner":"` + owner + `","spender":"` + spender + `","value":"-1","deadline":"1","v":27,"r":"` + word + `","s":"` + word + `"}`,
			wantErr: true,
		},
		{
			name:    "short address",
			body:    `{"owner":"0x1234","spender":"` + spender + `","value":"1","deadline":"1","v":27,"r":"` + word + `","s":"` + word + `"}`,
			wantErr: true,
		},
		{
			name:    "v out of byte range",
			body:    `{"owner":"` + owner + `","spender":"` + spender + `","value":"1","deadline":"1","v":256,"r":"` + word + `","s":"` + word + `"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(PermitSchema, []byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ve *ValidationError
				if !errors.As(err, &ve) || len(ve.Errors) == 0 {
					t.Errorf("expected ValidationError with details, got %v", err)
				}
			}
		})
	}
}

func TestGeneratedSchemas(t *testing.T) {
	t.Run("Generated schemas are valid JSON", func(t *testing.T) {
		for name, schema := range map[string]string{
			"digest":       PermitDigestSchema,
			"approve":      ApproveSchema,
			"transfer":     TransferSchema,
			"transferFrom": TransferFromSchema,
			"emergency":    EmergencyAddressSchema,
			"mint":         MintSchema,
			"burn":         BurnSchema,
			"owner":        OwnerSchema,
			"account":      AccountSchema,
			"allowance":    AllowanceSchema,
			"permit":       PermitSchema,
			"empty":        EmptySchema,
		} {
			var v map[string]interface{}
			if err := json.Unmarshal([]byte(schema), &v); err != nil {
				t.Errorf("%s schema is not valid JSON: %v", name, err)
			}
		}
	})

	t.Run("Approve requires both fields", func(t *testing.T) {
		if err := Validate(ApproveSchema, []byte(`{"spender":"`+spender+`","amount":"5"}`)); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if err := Validate(ApproveSchema, []byte(`{"spender":"`+spender+`"}`)); err == nil {
			t.Error("expected error for missing amount")
		}
	})
}

func TestToPermitRequest(t *testing.T) {
	req, err := ToPermitRequest([]byte(`{"owner":"` + owner + `","spender":"` + spender + `","value":"100","deadline":"5","v":28}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.V == nil || *req.V != 28 {
		t.Errorf("expected v=28, got %v", req.V)
	}
	if req.Nonce != "" {
		t.Errorf("expected empty nonce, got %q", req.Nonce)
	}
}
