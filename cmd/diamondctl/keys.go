package main

import (
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"xdao.co/diamond/keys"
)

func newKeysCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage local signing keys (~/.xdao/diamond/keys)",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Key store directory")
	store := func() (*keys.KeyStore, error) { return keys.CreateKeyStore(dir) }

	var (
		seedHex string
		force   bool
	)
	initCmd := &cobra.Command{
		Use:   "init <name>",
		Short: "Create a root key, random unless --seed-hex is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := store()
			if err != nil {
				return err
			}
			var seed []byte
			if seedHex != "" {
				if seed, err = keys.ParseSeedHex(seedHex); err != nil {
					return err
				}
			} else {
				seed = make([]byte, 32)
				if _, err := rand.Read(seed); err != nil {
					return err
				}
			}
			addr, path, err := ks.InitializeRootKey(args[0], seed, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", addr, path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&seedHex, "seed-hex", "", "32-byte seed as 64 hex chars")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing key")

	var role string
	deriveCmd := &cobra.Command{
		Use:   "derive <name>",
		Short: "Derive and store a role key from a root key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := store()
			if err != nil {
				return err
			}
			addr, path, err := ks.DeriveKeyFromRole(args[0], role, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", addr, path)
			return nil
		},
	}
	deriveCmd.Flags().StringVar(&role, "role", "", "Role name")
	deriveCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing key")
	_ = deriveCmd.MarkFlagRequired("role")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored keys and their roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := store()
			if err != nil {
				return err
			}
			entries, err := ks.ListKeys()
			if err != nil {
				return err
			}
			for _, e := range entries {
				addr, err := ks.Address(e.Name, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Name, addr)
				for _, r := range e.Roles {
					ra, err := ks.Address(e.Name, r)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\t%s\n", e.Name, r, ra)
				}
			}
			return nil
		},
	}

	var scheme string
	addressCmd := &cobra.Command{
		Use:   "address <name>",
		Short: "Print the account address of a stored key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := store()
			if err != nil {
				return err
			}
			seed, err := ks.LoadSeed("", args[0], role, "")
			if err != nil {
				return err
			}
			s, err := keys.ParseScheme(scheme)
			if err != nil {
				return err
			}
			signer, err := keys.NewSigner(s, seed)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signer.Address())
			return nil
		},
	}
	addressCmd.Flags().StringVar(&role, "role", "", "Role name")
	addressCmd.Flags().StringVar(&scheme, "scheme", "ed25519", "Signature scheme (ed25519 or dilithium3)")

	cmd.AddCommand(initCmd, deriveCmd, listCmd, addressCmd)
	return cmd
}
