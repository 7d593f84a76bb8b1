package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vaultsandbox/fundvault"
	"github.com/vaultsandbox/fundvault/authority"
	"github.com/vaultsandbox/fundvault/internal/crypto"
)

func newRunCmd(cfg Config, flags *globalFlags) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Execute a scripted vault scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := LoadScenario(args[0])
			if err != nil {
				return err
			}
			env, err := openEnvironment(cfg, flags)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return sc.Execute(ctx, env, cfg.Stdout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "abort the scenario after this long")
	return cmd
}

func newDeriveCmd(cfg Config, flags *globalFlags) *cobra.Command {
	var creator, mint, salt string
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Print the vault and vault account addresses for a creator and mint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creatorAddr, err := addressOrName(creator)
			if err != nil {
				return fmt.Errorf("--creator: %w", err)
			}
			mintAddr, err := authority.ParseAddress(mint)
			if err != nil {
				return fmt.Errorf("--mint: %w", err)
			}

			s, err := flags.settings()
			if err != nil {
				return err
			}
			// Derivation touches no state.
			s.DataDir = ""
			env, err := newEnvironment(s, nopLogger())
			if err != nil {
				return err
			}
			defer env.Close()

			addrs, err := env.manager.DeriveVault(creatorAddr, mintAddr, []byte(salt))
			if err != nil {
				return err
			}
			return writeYAML(cfg, map[string]string{
				"program":       s.Program,
				"vault":         addrs.Vault.String(),
				"vault_account": addrs.VaultAccount.String(),
			})
		},
	}
	cmd.Flags().StringVar(&creator, "creator", "", "creator address, or a participant name")
	cmd.Flags().StringVar(&mint, "mint", "", "mint address")
	cmd.Flags().StringVar(&salt, "salt", "", "optional vault salt")
	_ = cmd.MarkFlagRequired("creator")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

func newAddressCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "address <name>...",
		Short: "Print the addresses scenario participants get",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				s, err := signerFor(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cfg.Stdout, "%s %s\n", name, s.Address())
			}
			return nil
		},
	}
}

func newKeygenCmd(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an engine key for the engine_key setting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := crypto.GenerateKeypair()
			if err != nil {
				return err
			}
			return writeYAML(cfg, map[string]string{
				"engine_key": crypto.ToBase64URL(kp.SecretKey),
				"public_key": crypto.ToBase64URL(kp.PublicKey),
			})
		},
	}
}

// vaultView is the printed form of a vault record.
type vaultView struct {
	Address          string `yaml:"address"`
	Creator          string `yaml:"creator"`
	Salt             string `yaml:"salt,omitempty"`
	VaultAccount     string `yaml:"vault_account"`
	Mint             string `yaml:"mint"`
	EncryptedTotal   string `yaml:"encrypted_total"`
	ContributorCount uint64 `yaml:"contributor_count"`
	CreatedAt        string `yaml:"created_at"`
	Finalized        bool   `yaml:"finalized"`
	Version          uint64 `yaml:"version"`
}

func newVaultView(v *fundvault.Vault) vaultView {
	return vaultView{
		Address:          v.Address.String(),
		Creator:          v.Creator.String(),
		Salt:             string(v.Salt),
		VaultAccount:     v.VaultAccount.String(),
		Mint:             v.Mint.String(),
		EncryptedTotal:   v.EncryptedTotal.String(),
		ContributorCount: v.ContributorCount,
		CreatedAt:        v.CreatedAt.Format(time.RFC3339),
		Finalized:        v.IsFinalized,
		Version:          v.Version,
	}
}

func newInspectCmd(cfg Config, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <vault-address>",
		Short: "Print a vault record from the data directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := authority.ParseAddress(args[0])
			if err != nil {
				return err
			}
			s, err := flags.settings()
			if err != nil {
				return err
			}
			if s.DataDir == "" {
				return fmt.Errorf("inspect needs data_dir in the settings or --data-dir")
			}
			env, err := newEnvironment(s, nopLogger())
			if err != nil {
				return err
			}
			defer env.Close()

			v, err := env.manager.Vault(cmd.Context(), addr)
			if err != nil {
				return err
			}
			return writeYAML(cfg, newVaultView(v))
		},
	}
}

func openEnvironment(cfg Config, flags *globalFlags) (*environment, error) {
	s, err := flags.settings()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(s.LogLevel, cfg.Stderr)
	if err != nil {
		return nil, err
	}
	return newEnvironment(s, logger)
}

// addressOrName parses s as an address and falls back to the participant
// key derived from s.
func addressOrName(s string) (authority.Address, error) {
	if addr, err := authority.ParseAddress(s); err == nil {
		return addr, nil
	}
	signer, err := signerFor(s)
	if err != nil {
		return authority.Address{}, err
	}
	return signer.Address(), nil
}

func writeYAML(cfg Config, v any) error {
	enc := yaml.NewEncoder(cfg.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
