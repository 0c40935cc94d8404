// Package deploy assembles the standard token router: every facet deployed,
// routed and initialized, and the burn module registered but disabled.
package deploy

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"xdao.co/diamond/bind"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/facets/burn"
	"xdao.co/diamond/facets/cutfacet"
	"xdao.co/diamond/facets/erc20"
	"xdao.co/diamond/facets/loupe"
	"xdao.co/diamond/facets/moduletoggle"
	"xdao.co/diamond/facets/ownership"
	"xdao.co/diamond/model"
)

const (
	DefaultName   = "Managed Democracy"
	DefaultSymbol = "MDEM"
)

// DefaultSupply is 100,000,000 tokens at 18 decimals.
var DefaultSupply = new(uint256.Int).Mul(uint256.NewInt(100_000_000), new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18)))

// Library returns fresh instances of every standard facet. Hosts reopened
// over existing state must link these before serving calls.
func Library() []diamond.Facet {
	return []diamond.Facet{
		cutfacet.New(),
		erc20.New(),
		moduletoggle.New(),
		burn.New(),
		ownership.New(),
		loupe.New(),
	}
}

// Options parameterize Standard. Zero values select the defaults.
type Options struct {
	Name   string
	Symbol string
	Supply *uint256.Int
	// Recipient receives the minted supply. Defaults to the deployer.
	Recipient model.Address
	// BurnRate, when set, initializes the burn module at that rate.
	BurnRate *uint64
}

func (o Options) withDefaults(deployer model.Address) Options {
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.Symbol == "" {
		o.Symbol = DefaultSymbol
	}
	if o.Supply == nil {
		o.Supply = DefaultSupply
	}
	if o.Recipient.IsZero() {
		o.Recipient = deployer
	}
	return o
}

// Deployment lists the addresses Standard created.
type Deployment struct {
	Router       model.Address `json:"router"`
	CutFacet     model.Address `json:"cutFacet"`
	ERC20        model.Address `json:"erc20Facet"`
	ModuleToggle model.Address `json:"moduleToggleFacet"`
	Burn         model.Address `json:"burnFacet"`
	Ownership    model.Address `json:"ownershipFacet"`
	Loupe        model.Address `json:"loupeFacet"`
}

// BurnModule returns the configuration Standard registers for the burn module.
func (d Deployment) BurnModule() model.ModuleConfig {
	return model.ModuleConfig{
		ID:        burn.ModuleID,
		Active:    d.Burn,
		Inactive:  d.ERC20,
		Selectors: []model.Selector{burn.Transfer.ID()},
	}
}

// Standard deploys the facets and a router owned by deployer, then:
//
//  1. routes every erc20 function and initializes the ledger,
//  2. routes the loupe, module toggle and ownership functions,
//  3. routes the burn functions that do not collide with erc20,
//  4. registers the burn module with burn as active and erc20 as inactive.
func Standard(ctx context.Context, h *diamond.Host, deployer model.Address, opts Options) (Deployment, error) {
	opts = opts.withDefaults(deployer)
	var d Deployment

	deployOne := func(dst *model.Address, f diamond.Facet) error {
		info, err := h.Deploy(ctx, deployer, f)
		if err != nil {
			return fmt.Errorf("deploy %s: %w", f.Name(), err)
		}
		*dst = info.Address
		return nil
	}
	steps := []struct {
		dst *model.Address
		f   diamond.Facet
	}{
		{&d.CutFacet, cutfacet.New()},
		{&d.ERC20, erc20.New()},
		{&d.ModuleToggle, moduletoggle.New()},
		{&d.Burn, burn.New()},
		{&d.Ownership, ownership.New()},
	}
	for _, s := range steps {
		if err := deployOne(s.dst, s.f); err != nil {
			return Deployment{}, err
		}
	}
	info, err := h.DeployRouter(ctx, deployer, deployer, d.CutFacet)
	if err != nil {
		return Deployment{}, fmt.Errorf("deploy router: %w", err)
	}
	d.Router = info.Address
	r := bind.NewRouter(d.Router, bind.Direct(h, deployer))

	add := func(addr model.Address, sels []model.Selector) error {
		_, err := r.DiamondCut(ctx, []model.FacetCut{{FacetAddress: addr, Action: model.CutAdd, Selectors: sels}}, model.ZeroAddress, nil)
		return err
	}

	if err := add(d.ERC20, diamond.SelectorsOf(erc20.New())); err != nil {
		return Deployment{}, fmt.Errorf("route erc20: %w", err)
	}
	if _, err := r.InitializeERC20(ctx, opts.Name, opts.Symbol, opts.Supply, opts.Recipient); err != nil {
		return Deployment{}, fmt.Errorf("initialize erc20: %w", err)
	}

	if err := deployOne(&d.Loupe, loupe.New()); err != nil {
		return Deployment{}, err
	}
	if err := add(d.Loupe, diamond.SelectorsOf(loupe.New())); err != nil {
		return Deployment{}, fmt.Errorf("route loupe: %w", err)
	}
	if err := add(d.ModuleToggle, diamond.SelectorsOf(moduletoggle.New())); err != nil {
		return Deployment{}, fmt.Errorf("route module toggle: %w", err)
	}
	if err := add(d.Ownership, diamond.SelectorsOf(ownership.New())); err != nil {
		return Deployment{}, fmt.Errorf("route ownership: %w", err)
	}
	if err := add(d.Burn, []model.Selector{burn.Initialize.ID(), burn.Update.ID(), burn.BurnConfiguration.ID()}); err != nil {
		return Deployment{}, fmt.Errorf("route burn: %w", err)
	}

	if _, err := r.SetModuleConfiguration(ctx, d.BurnModule()); err != nil {
		return Deployment{}, fmt.Errorf("register burn module: %w", err)
	}
	if opts.BurnRate != nil {
		if _, err := r.InitializeBurnModule(ctx, *opts.BurnRate); err != nil {
			return Deployment{}, fmt.Errorf("initialize burn module: %w", err)
		}
	}
	return d, nil
}

// routerNonce is the deployer nonce Standard creates the router at: the
// five facets before it take nonces 0 through 4.
const routerNonce = 5

// RouterAddress returns where Standard places the router for a fresh deployer.
func RouterAddress(deployer model.Address) model.Address {
	return diamond.CreateAddress(deployer, routerNonce)
}

// Locate rebuilds the Deployment Standard produced for deployer by reading
// the router's dispatch table. It fails with NoCode when no router exists.
func Locate(ctx context.Context, h *diamond.Host, deployer model.Address) (Deployment, error) {
	router := RouterAddress(deployer)
	info, ok, err := h.Code(ctx, router)
	if err != nil {
		return Deployment{}, err
	}
	if !ok || info.Name != diamond.RouterCodeName {
		return Deployment{}, model.Errorf(model.ErrNoCode, "no router deployed by %s", deployer)
	}
	r := bind.NewRouter(router, bind.Direct(h, deployer))
	d := Deployment{Router: router}
	lookups := []struct {
		dst *model.Address
		sel model.Selector
	}{
		{&d.CutFacet, cutfacet.DiamondCut.ID()},
		{&d.ERC20, erc20.Approve.ID()},
		{&d.ModuleToggle, moduletoggle.SetModuleState.ID()},
		{&d.Burn, burn.Update.ID()},
		{&d.Ownership, ownership.Owner.ID()},
		{&d.Loupe, loupe.FacetAddress.ID()},
	}
	for _, l := range lookups {
		addr, err := r.FacetAddress(ctx, l.sel)
		if err != nil {
			return Deployment{}, fmt.Errorf("locate %s: %w", l.sel, err)
		}
		*l.dst = addr
	}
	return d, nil
}
