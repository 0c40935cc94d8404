package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"

	"xdao.co/diamond/bind"
	"xdao.co/diamond/keys"
	"xdao.co/diamond/model"
	"xdao.co/diamond/rpc"
)

// remote holds the flags shared by commands that talk to diamondd.
type remote struct {
	addr    string
	router  string
	timeout time.Duration

	keyDir  string
	keyName string
	role    string
	seedHex string
	keyFile string
	scheme  string
}

func (r *remote) bind(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&r.addr, "addr", "127.0.0.1:7878", "diamondd gRPC address")
	f.StringVar(&r.router, "router", os.Getenv("DIAMOND_ROUTER"), "Router address (default $DIAMOND_ROUTER)")
	f.DurationVar(&r.timeout, "timeout", 10*time.Second, "Per-request timeout")
	f.StringVar(&r.keyDir, "key-dir", "", "Key store directory")
	f.StringVar(&r.keyName, "signer", "", "Stored key name to sign with")
	f.StringVar(&r.role, "signer-role", "", "Role key of --signer")
	f.StringVar(&r.seedHex, "seed-hex", "", "32-byte seed as 64 hex chars")
	f.StringVar(&r.keyFile, "key-file", "", "File holding a hex seed")
	f.StringVar(&r.scheme, "scheme", "ed25519", "Signature scheme (ed25519 or dilithium3)")
}

func (r *remote) hasSigner() bool {
	return r.keyName != "" || r.seedHex != "" || r.keyFile != ""
}

func (r *remote) signer() (keys.Signer, error) {
	ks, err := keys.CreateKeyStore(r.keyDir)
	if err != nil {
		return nil, err
	}
	seed, err := ks.LoadSeed(r.seedHex, r.keyName, r.role, r.keyFile)
	if err != nil {
		return nil, err
	}
	scheme, err := keys.ParseScheme(r.scheme)
	if err != nil {
		return nil, err
	}
	return keys.NewSigner(scheme, seed)
}

func (r *remote) dial() (*rpc.Client, error) {
	c, err := rpc.Dial(r.addr, rpc.DialOptions{Timeout: r.timeout})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", r.addr, err)
	}
	c.Timeout = r.timeout
	return c, nil
}

// session opens a client and a router binding. Without signer flags the
// binding is read-only.
func (r *remote) session() (*rpc.Client, *bind.Router, error) {
	if r.router == "" {
		return nil, nil, errors.New("--router is required (see diamondctl router-address)")
	}
	routerAddr, err := model.ParseAddress(r.router)
	if err != nil {
		return nil, nil, fmt.Errorf("--router: %w", err)
	}
	c, err := r.dial()
	if err != nil {
		return nil, nil, err
	}
	var b bind.Backend = bind.ReadOnly(c, model.ZeroAddress)
	if r.hasSigner() {
		s, err := r.signer()
		if err != nil {
			_ = c.Close()
			return nil, nil, err
		}
		b = bind.Signed(c, s)
	}
	return c, bind.NewRouter(routerAddr, b), nil
}

// withRouter runs fn against a router session and closes the client.
func (r *remote) withRouter(fn func(ctx context.Context, rt *bind.Router) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		c, rt, err := r.session()
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(cmd.Context(), rt)
	}
}

func newTokenCmd() *cobra.Command {
	var r remote
	cmd := &cobra.Command{Use: "token", Short: "ERC-20 operations on the router"}
	r.bind(cmd)

	info := &cobra.Command{
		Use:   "info",
		Short: "Print token metadata, supply and burn configuration",
		Args:  cobra.NoArgs,
	}
	info.RunE = r.withRouter(func(ctx context.Context, rt *bind.Router) error {
		name, err := rt.Name(ctx)
		if err != nil {
			return err
		}
		symbol, err := rt.Symbol(ctx)
		if err != nil {
			return err
		}
		decimals, err := rt.Decimals(ctx)
		if err != nil {
			return err
		}
		supply, err := rt.TotalSupply(ctx)
		if err != nil {
			return err
		}
		burnCfg, err := rt.BurnConfiguration(ctx)
		if err != nil {
			return err
		}
		return writeJSON(info.OutOrStdout(), map[string]any{
			"name":        name,
			"symbol":      symbol,
			"decimals":    decimals,
			"totalSupply": supply.Dec(),
			"burn":        burnCfg,
		})
	})

	balance := &cobra.Command{
		Use:   "balance <address>",
		Short: "Print the balance of an account",
		Args:  cobra.ExactArgs(1),
	}
	balance.RunE = func(cmd *cobra.Command, args []string) error {
		who, err := model.ParseAddress(args[0])
		if err != nil {
			return err
		}
		return r.withRouter(func(ctx context.Context, rt *bind.Router) error {
			v, err := rt.BalanceOf(ctx, who)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Dec())
			return nil
		})(cmd, args)
	}

	transfer := &cobra.Command{
		Use:   "transfer <to> <amount>",
		Short: "Transfer base units from the signer",
		Args:  cobra.ExactArgs(2),
	}
	transfer.RunE = func(cmd *cobra.Command, args []string) error {
		to, err := model.ParseAddress(args[0])
		if err != nil {
			return err
		}
		amt, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		return r.withRouter(func(ctx context.Context, rt *bind.Router) error {
			rec, err := rt.Transfer(ctx, to, amt)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		})(cmd, args)
	}

	approve := &cobra.Command{
		Use:   "approve <spender> <amount>",
		Short: "Set the signer's allowance for spender",
		Args:  cobra.ExactArgs(2),
	}
	approve.RunE = func(cmd *cobra.Command, args []string) error {
		spender, err := model.ParseAddress(args[0])
		if err != nil {
			return err
		}
		amt, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		return r.withRouter(func(ctx context.Context, rt *bind.Router) error {
			rec, err := rt.Approve(ctx, spender, amt)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		})(cmd, args)
	}

	var burnRate uint64
	setBurn := &cobra.Command{
		Use:   "burn-rate <basis-points>",
		Short: "Initialize or update the burn rate (owner only)",
		Args:  cobra.ExactArgs(1),
	}
	setBurn.RunE = func(cmd *cobra.Command, args []string) error {
		if _, err := fmt.Sscan(args[0], &burnRate); err != nil {
			return fmt.Errorf("rate %q: %w", args[0], err)
		}
		return r.withRouter(func(ctx context.Context, rt *bind.Router) error {
			cur, err := rt.BurnConfiguration(ctx)
			if err != nil {
				return err
			}
			set := rt.UpdateBurnModule
			if !cur.Initialized {
				set = rt.InitializeBurnModule
			}
			rec, err := set(ctx, burnRate)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		})(cmd, args)
	}

	cmd.AddCommand(info, balance, transfer, approve, setBurn)
	return cmd
}

func newModuleCmd() *cobra.Command {
	var r remote
	cmd := &cobra.Command{Use: "module", Short: "Inspect and toggle router modules"}
	r.bind(cmd)

	setState := func(enabled bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			id, err := parseModuleID(args[0])
			if err != nil {
				return err
			}
			return r.withRouter(func(ctx context.Context, rt *bind.Router) error {
				rec, err := rt.SetModuleState(ctx, id, enabled)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), rec)
			})(cmd, args)
		}
	}
	enable := &cobra.Command{Use: "enable <name|id>", Short: "Route the module's selectors to its active implementation", Args: cobra.ExactArgs(1), RunE: setState(true)}
	disable := &cobra.Command{Use: "disable <name|id>", Short: "Route the module's selectors to its inactive implementation", Args: cobra.ExactArgs(1), RunE: setState(false)}

	status := &cobra.Command{
		Use:   "status <name|id>",
		Short: "Print a module's configuration",
		Args:  cobra.ExactArgs(1),
	}
	status.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseModuleID(args[0])
		if err != nil {
			return err
		}
		return r.withRouter(func(ctx context.Context, rt *bind.Router) error {
			cfg, err := rt.ModuleConfiguration(ctx, id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cfg)
		})(cmd, args)
	}

	list := &cobra.Command{Use: "list", Short: "List registered module ids", Args: cobra.NoArgs}
	list.RunE = r.withRouter(func(ctx context.Context, rt *bind.Router) error {
		ids, err := rt.ModuleIDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(list.OutOrStdout(), id)
		}
		return nil
	})

	cmd.AddCommand(enable, disable, status, list)
	return cmd
}

func newLoupeCmd() *cobra.Command {
	var r remote
	cmd := &cobra.Command{Use: "loupe", Short: "Inspect the router's dispatch table"}
	r.bind(cmd)

	facets := &cobra.Command{Use: "facets", Short: "List facets and their selectors", Args: cobra.NoArgs}
	facets.RunE = r.withRouter(func(ctx context.Context, rt *bind.Router) error {
		fs, err := rt.Facets(ctx)
		if err != nil {
			return err
		}
		return writeJSON(facets.OutOrStdout(), fs)
	})

	facetAddress := &cobra.Command{
		Use:   "facet-address <selector>",
		Short: "Print the facet a selector routes to",
		Args:  cobra.ExactArgs(1),
	}
	facetAddress.RunE = func(cmd *cobra.Command, args []string) error {
		sel, err := model.ParseSelector(args[0])
		if err != nil {
			return err
		}
		routerAddr, err := model.ParseAddress(r.router)
		if err != nil {
			return fmt.Errorf("--router: %w", err)
		}
		c, err := r.dial()
		if err != nil {
			return err
		}
		defer c.Close()
		addr, err := c.FacetAddress(cmd.Context(), routerAddr, sel)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), addr)
		return nil
	}

	cmd.AddCommand(facets, facetAddress)
	return cmd
}

func newOwnerCmd() *cobra.Command {
	var r remote
	cmd := &cobra.Command{Use: "owner", Short: "Router ownership"}
	r.bind(cmd)

	show := &cobra.Command{Use: "show", Short: "Print the router owner", Args: cobra.NoArgs}
	show.RunE = r.withRouter(func(ctx context.Context, rt *bind.Router) error {
		o, err := rt.Owner(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(show.OutOrStdout(), o)
		return nil
	})

	transfer := &cobra.Command{Use: "transfer <new-owner>", Short: "Hand ownership to another account", Args: cobra.ExactArgs(1)}
	transfer.RunE = func(cmd *cobra.Command, args []string) error {
		next, err := model.ParseAddress(args[0])
		if err != nil {
			return err
		}
		return r.withRouter(func(ctx context.Context, rt *bind.Router) error {
			rec, err := rt.TransferOwnership(ctx, next)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		})(cmd, args)
	}

	cmd.AddCommand(show, transfer)
	return cmd
}

func newSnapshotCmd() *cobra.Command {
	var r remote
	cmd := &cobra.Command{Use: "snapshot", Short: "Save and fetch daemon state snapshots"}
	r.bind(cmd)

	save := &cobra.Command{Use: "save", Short: "Snapshot the daemon state and print its CID", Args: cobra.NoArgs}
	save.RunE = func(cmd *cobra.Command, _ []string) error {
		c, err := r.dial()
		if err != nil {
			return err
		}
		defer c.Close()
		id, err := c.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	}

	var outPath string
	get := &cobra.Command{Use: "get <cid>", Short: "Download a snapshot", Args: cobra.ExactArgs(1)}
	get.Flags().StringVarP(&outPath, "output", "o", "", "Write to file instead of stdout")
	get.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := cid.Decode(args[0])
		if err != nil {
			return err
		}
		c, err := r.dial()
		if err != nil {
			return err
		}
		defer c.Close()
		b, err := c.GetSnapshot(cmd.Context(), id)
		if err != nil {
			return err
		}
		if outPath == "" {
			_, err = cmd.OutOrStdout().Write(b)
			return err
		}
		return os.WriteFile(outPath, b, 0o644)
	}

	cmd.AddCommand(save, get)
	return cmd
}
