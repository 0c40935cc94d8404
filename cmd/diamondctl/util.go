package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"xdao.co/diamond/abi"
	"xdao.co/diamond/deploy"
	"xdao.co/diamond/model"
)

func newSelectorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selector <signature>...",
		Short: "Print the 4-byte selector of each function signature",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, sig := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", abi.SelectorOf(sig), sig)
			}
			return nil
		},
	}
}

func newModuleIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "module-id <name>",
		Short: "Print keccak256(name), the identifier a module registers under",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), abi.ModuleIDOf(args[0]))
			return nil
		},
	}
}

func newRouterAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "router-address <deployer>",
		Short: "Print where diamondd places the router for a deployer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := model.ParseAddress(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), deploy.RouterAddress(d))
			return nil
		},
	}
}

// parseModuleID accepts a 0x-prefixed 32-byte id or a module name.
func parseModuleID(s string) (model.ModuleID, error) {
	if strings.HasPrefix(s, "0x") && len(s) == 66 {
		var id model.ModuleID
		if err := id.UnmarshalText([]byte(s)); err != nil {
			return model.ModuleID{}, err
		}
		return id, nil
	}
	if strings.TrimSpace(s) == "" {
		return model.ModuleID{}, fmt.Errorf("empty module name")
	}
	return abi.ModuleIDOf(s), nil
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", s, err)
	}
	return v, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
