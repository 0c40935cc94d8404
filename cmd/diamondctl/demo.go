package main

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"xdao.co/diamond/bind"
	"xdao.co/diamond/deploy"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/facets/burn"
	"xdao.co/diamond/keys"
	"xdao.co/diamond/state/memstore"
)

type demoStep struct {
	Step         string `json:"step"`
	BurnEnabled  bool   `json:"burnEnabled"`
	Amount       string `json:"amount"`
	Received     string `json:"received"`
	TotalSupply  string `json:"totalSupply"`
	SenderBefore string `json:"senderBefore"`
	SenderAfter  string `json:"senderAfter"`
}

// newDemoCmd deploys the standard router in memory and shows a transfer
// with the burn module disabled and then enabled.
func newDemoCmd() *cobra.Command {
	var (
		rate   uint64
		amount string
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a transfer with and without the burn module on an in-memory router",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().Uint64Var(&rate, "rate", 100, "Burn rate in basis points")
	cmd.Flags().StringVar(&amount, "amount", "1000", "Transfer amount in base units")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		amt, err := parseAmount(amount)
		if err != nil {
			return err
		}
		root := make([]byte, 32)
		ownerSeed, err := keys.DeriveRoleSeed(root, "demo-owner")
		if err != nil {
			return err
		}
		peerSeed, err := keys.DeriveRoleSeed(root, "demo-peer")
		if err != nil {
			return err
		}
		owner, err := keys.AddressFromSeed(ownerSeed)
		if err != nil {
			return err
		}
		peer, err := keys.AddressFromSeed(peerSeed)
		if err != nil {
			return err
		}

		h := diamond.NewHost(memstore.New())
		d, err := deploy.Standard(ctx, h, owner, deploy.Options{BurnRate: &rate})
		if err != nil {
			return err
		}
		rt := bind.NewRouter(d.Router, bind.Direct(h, owner))

		step := func(name string, enabled bool) (demoStep, error) {
			before, err := rt.BalanceOf(ctx, owner)
			if err != nil {
				return demoStep{}, err
			}
			peerBefore, err := rt.BalanceOf(ctx, peer)
			if err != nil {
				return demoStep{}, err
			}
			if _, err := rt.Transfer(ctx, peer, amt); err != nil {
				return demoStep{}, err
			}
			after, err := rt.BalanceOf(ctx, owner)
			if err != nil {
				return demoStep{}, err
			}
			peerAfter, err := rt.BalanceOf(ctx, peer)
			if err != nil {
				return demoStep{}, err
			}
			supply, err := rt.TotalSupply(ctx)
			if err != nil {
				return demoStep{}, err
			}
			return demoStep{
				Step:         name,
				BurnEnabled:  enabled,
				Amount:       amt.Dec(),
				Received:     new(uint256.Int).Sub(peerAfter, peerBefore).Dec(),
				TotalSupply:  supply.Dec(),
				SenderBefore: before.Dec(),
				SenderAfter:  after.Dec(),
			}, nil
		}

		plain, err := step("plain transfer", false)
		if err != nil {
			return err
		}
		if _, err := rt.SetModuleState(ctx, burn.ModuleID, true); err != nil {
			return fmt.Errorf("enable burn module: %w", err)
		}
		burned, err := step("burn-on-transfer", true)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"router": d.Router,
			"owner":  owner,
			"peer":   peer,
			"steps":  []demoStep{plain, burned},
		})
	}
	return cmd
}
