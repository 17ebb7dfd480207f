package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mytoken-labs/mytoken/go/mechanisms/evm"
	"github.com/mytoken-labs/mytoken/go/pkg/config"
	evmsigner "github.com/mytoken-labs/mytoken/go/signers/evm"
)

// domainFlags override the token domain read from the config file.
type domainFlags struct {
	name    string
	chainID string
	address string
}

func (d *domainFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.name, "name", "", "token name (overrides config)")
	cmd.Flags().StringVar(&d.chainID, "chain-id", "", "chain id (overrides config)")
	cmd.Flags().StringVar(&d.address, "address", "", "token contract address (overrides config)")
}

func (d *domainFlags) resolve(opts *RootOptions) (evm.TypedDataDomain, error) {
	cfg, err := config.LoadUnvalidated(opts.ConfigPath)
	if err != nil {
		return evm.TypedDataDomain{}, err
	}
	if d.name != "" {
		cfg.Token.Name = d.name
	}
	if d.chainID != "" {
		cfg.Token.ChainID = d.chainID
	}
	if d.address != "" {
		cfg.Token.Address = d.address
	}

	chainID, err := cfg.ChainID()
	if err != nil {
		return evm.TypedDataDomain{}, err
	}
	addr, err := evm.ParseAddress(cfg.Token.Address)
	if err != nil {
		return evm.TypedDataDomain{}, fmt.Errorf("token address: %w", err)
	}
	if cfg.Token.Name == "" {
		return evm.TypedDataDomain{}, fmt.Errorf("token name is required")
	}
	return evm.NewTokenDomain(cfg.Token.Name, chainID, addr), nil
}

// permitFlags are the permit message fields.
type permitFlags struct {
	owner    string
	spender  string
	value    string
	nonce    string
	deadline string
}

func (p *permitFlags) bind(cmd *cobra.Command, ownerRequired bool) {
	cmd.Flags().StringVar(&p.owner, "owner", "", "permit owner address")
	cmd.Flags().StringVar(&p.spender, "spender", "", "permit spender address")
	cmd.Flags().StringVar(&p.value, "value", "", "allowance to grant (decimal)")
	cmd.Flags().StringVar(&p.nonce, "nonce", "0", "owner's current nonce")
	cmd.Flags().StringVar(&p.deadline, "deadline", "", "unix deadline (decimal)")
	if ownerRequired {
		_ = cmd.MarkFlagRequired("owner")
	}
	_ = cmd.MarkFlagRequired("spender")
	_ = cmd.MarkFlagRequired("value")
	_ = cmd.MarkFlagRequired("deadline")
}

func (p *permitFlags) permit(owner common.Address) (evm.Permit, error) {
	spender, err := evm.ParseAddress(p.spender)
	if err != nil {
		return evm.Permit{}, fmt.Errorf("spender: %w", err)
	}
	value, err := evm.ParseUint256(p.value)
	if err != nil {
		return evm.Permit{}, fmt.Errorf("value: %w", err)
	}
	nonce, err := evm.ParseUint256(p.nonce)
	if err != nil {
		return evm.Permit{}, fmt.Errorf("nonce: %w", err)
	}
	deadline, err := evm.ParseUint256(p.deadline)
	if err != nil {
		return evm.Permit{}, fmt.Errorf("deadline: %w", err)
	}
	return evm.Permit{Owner: owner, Spender: spender, Value: value, Nonce: nonce, Deadline: deadline}, nil
}

// NewSignPermitCommand creates the sign-permit command.
func NewSignPermitCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		domain domainFlags
		fields permitFlags
		key    string
	)

	cmd := &cobra.Command{
		Use:   "sign-permit",
		Short: "Sign an EIP-2612 permit with a private key",
		Long: `Sign an EIP-2612 permit and print v, r, s and the packed signature.

The key is read from --key or MYTOKEN_SIGNER_KEY. When --owner is given it
must match the key's address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = os.Getenv(config.EnvPrefix + "SIGNER_KEY")
			}
			if key == "" {
				return fmt.Errorf("--key or %sSIGNER_KEY is required", config.EnvPrefix)
			}
			signer, err := evmsigner.NewClientSignerFromPrivateKey(key)
			if err != nil {
				return err
			}
			owner := signer.CommonAddress()
			if fields.owner != "" && !strings.EqualFold(fields.owner, owner.Hex()) {
				return fmt.Errorf("--owner %s does not match key address %s", fields.owner, owner.Hex())
			}

			d, err := domain.resolve(rootOpts)
			if err != nil {
				return err
			}
			permit, err := fields.permit(owner)
			if err != nil {
				return err
			}

			sig, err := signer.SignPermit(cmd.Context(), d, permit)
			if err != nil {
				return err
			}
			digest, err := permitDigest(d, permit)
			if err != nil {
				return err
			}

			return Output(cmd.OutOrStdout(), rootOpts.Format, map[string]string{
				"owner":     owner.Hex(),
				"digest":    digest.Hex(),
				"v":         fmt.Sprint(sig.V),
				"r":         evm.BytesToHex(sig.R[:]),
				"s":         evm.BytesToHex(sig.S[:]),
				"signature": evm.BytesToHex(sig.Bytes()),
			})
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "hex private key of the owner")
	domain.bind(cmd)
	fields.bind(cmd, false)
	return cmd
}

// NewDigestCommand creates the digest command.
func NewDigestCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		domain domainFlags
		fields permitFlags
	)

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print the EIP-712 digest of a permit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := evm.ParseAddress(fields.owner)
			if err != nil {
				return fmt.Errorf("owner: %w", err)
			}
			d, err := domain.resolve(rootOpts)
			if err != nil {
				return err
			}
			permit, err := fields.permit(owner)
			if err != nil {
				return err
			}
			digest, err := permitDigest(d, permit)
			if err != nil {
				return err
			}
			return Output(cmd.OutOrStdout(), rootOpts.Format, map[string]string{
				"digest": digest.Hex(),
			})
		},
	}

	domain.bind(cmd)
	fields.bind(cmd, true)
	return cmd
}

// NewDomainCommand creates the domain command.
func NewDomainCommand(rootOpts *RootOptions) *cobra.Command {
	var domain domainFlags

	cmd := &cobra.Command{
		Use:   "domain",
		Short: "Print the token's EIP-712 domain and separator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := domain.resolve(rootOpts)
			if err != nil {
				return err
			}
			chainID := d.ChainID
			addr := common.HexToAddress(d.VerifyingContract)
			separator, err := evm.DomainSeparator(d.Name, chainID, addr)
			if err != nil {
				return err
			}
			return Output(cmd.OutOrStdout(), rootOpts.Format, map[string]string{
				"name":              d.Name,
				"version":           d.Version,
				"chainId":           chainID.String(),
				"verifyingContract": addr.Hex(),
				"domainSeparator":   separator.Hex(),
			})
		},
	}

	domain.bind(cmd)
	return cmd
}

func permitDigest(d evm.TypedDataDomain, permit evm.Permit) (common.Hash, error) {
	return evm.PermitDigest(d.Name, common.HexToAddress(d.VerifyingContract), d.ChainID, permit)
}
