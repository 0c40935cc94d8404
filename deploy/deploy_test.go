package deploy_test

import (
	"context"
	"testing"

	"github.com/holiman/uint256"

	"xdao.co/diamond/bind"
	"xdao.co/diamond/deploy"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/facets/burn"
	"xdao.co/diamond/facets/erc20"
	"xdao.co/diamond/facets/loupe"
	"xdao.co/diamond/keys"
	"xdao.co/diamond/model"
	"xdao.co/diamond/state"
	"xdao.co/diamond/state/memstore"
	"xdao.co/diamond/storage"
)

var (
	deployer = model.Address{19: 0xd0}
	addr1    = model.Address{19: 0xa1}
)

func tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18)))
}

func setup(t *testing.T) (*diamond.Host, deploy.Deployment, *bind.Router) {
	t.Helper()
	h := diamond.NewHost(memstore.New())
	d, err := deploy.Standard(context.Background(), h, deployer, deploy.Options{})
	if err != nil {
		t.Fatalf("Standard: %v", err)
	}
	return h, d, bind.NewRouter(d.Router, bind.Direct(h, deployer))
}

func expectCode(t *testing.T, err error, code model.ErrorCode) {
	t.Helper()
	if !model.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestStandard_Routing(t *testing.T) {
	_, d, r := setup(t)
	ctx := context.Background()

	want := map[model.Selector]model.Address{
		diamond.DiamondCutMethod.ID(): d.CutFacet,
		erc20.Transfer.ID():           d.ERC20,
		erc20.BalanceOf.ID():          d.ERC20,
		loupe.FacetAddress.ID():       d.Loupe,
		burn.Initialize.ID():          d.Burn,
		burn.BurnConfiguration.ID():   d.Burn,
	}
	for sel, addr := range want {
		got, err := r.FacetAddress(ctx, sel)
		if err != nil {
			t.Fatalf("FacetAddress(%s): %v", sel, err)
		}
		if got != addr {
			t.Fatalf("FacetAddress(%s) = %s, want %s", sel, got, addr)
		}
	}
	if got, _ := r.FacetAddress(ctx, model.Selector{0xde, 0xad, 0xbe, 0xef}); !got.IsZero() {
		t.Fatalf("unrouted selector reports %s", got)
	}

	addrs, err := r.FacetAddresses(ctx)
	if err != nil {
		t.Fatalf("FacetAddresses: %v", err)
	}
	if len(addrs) != 6 {
		t.Fatalf("expected 6 routed facets, got %d", len(addrs))
	}
	sels, err := r.FacetFunctionSelectors(ctx, d.ERC20)
	if err != nil || len(sels) != len(diamond.SelectorsOf(erc20.New())) {
		t.Fatalf("FacetFunctionSelectors = %v, %v", sels, err)
	}
	facets, err := r.Facets(ctx)
	if err != nil || len(facets) != 6 {
		t.Fatalf("Facets = %v, %v", facets, err)
	}

	owner, err := r.Owner(ctx)
	if err != nil || owner != deployer {
		t.Fatalf("Owner = %s, %v", owner, err)
	}

	cfg, err := r.ModuleConfiguration(ctx, burn.ModuleID)
	if err != nil {
		t.Fatalf("ModuleConfiguration: %v", err)
	}
	if cfg.Enabled || cfg.Active != d.Burn || cfg.Inactive != d.ERC20 {
		t.Fatalf("unexpected burn module config %+v", cfg)
	}
	ids, err := r.ModuleIDs(ctx)
	if err != nil || len(ids) != 1 || ids[0] != burn.ModuleID {
		t.Fatalf("ModuleIDs = %v, %v", ids, err)
	}
}

func TestTransferSelectorConstant(t *testing.T) {
	if got := erc20.Transfer.ID().String(); got != "0xa9059cbb" {
		t.Fatalf("transfer selector = %s", got)
	}
	if erc20.Transfer.ID() != burn.Transfer.ID() {
		t.Fatalf("erc20 and burn transfer selectors differ")
	}
}

// TestBurnModuleLifecycle walks the operator flow: plain transfer, enable,
// burning transfer, disable, plain transfer again.
func TestBurnModuleLifecycle(t *testing.T) {
	h, d, r := setup(t)
	ctx := context.Background()

	if _, err := r.InitializeBurnModule(ctx, 100); err != nil {
		t.Fatalf("InitializeBurnModule: %v", err)
	}
	if _, err := r.Transfer(ctx, addr1, tokens(1000)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if bal, _ := r.BalanceOf(ctx, addr1); !bal.Eq(tokens(1000)) {
		t.Fatalf("inactive module burned: %s", bal.Dec())
	}

	if _, err := r.SetModuleState(ctx, burn.ModuleID, true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	on, err := r.IsModuleEnabled(ctx, burn.ModuleID)
	if err != nil || !on {
		t.Fatalf("IsModuleEnabled = %v, %v", on, err)
	}
	if got, _ := r.FacetAddress(ctx, erc20.Transfer.ID()); got != d.Burn {
		t.Fatalf("transfer routes to %s, want burn facet", got)
	}

	if _, err := r.Transfer(ctx, addr1, tokens(1000)); err != nil {
		t.Fatalf("burning Transfer: %v", err)
	}
	burned := new(uint256.Int).Div(tokens(1000), uint256.NewInt(100))
	wantBal := new(uint256.Int).Sub(tokens(2000), burned)
	if bal, _ := r.BalanceOf(ctx, addr1); !bal.Eq(wantBal) {
		t.Fatalf("recipient balance %s, want %s", bal.Dec(), wantBal.Dec())
	}
	wantSupply := new(uint256.Int).Sub(deploy.DefaultSupply, burned)
	if supply, _ := r.TotalSupply(ctx); !supply.Eq(wantSupply) {
		t.Fatalf("supply %s, want %s", supply.Dec(), wantSupply.Dec())
	}

	if _, err := r.SetModuleState(ctx, burn.ModuleID, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if got, _ := r.FacetAddress(ctx, erc20.Transfer.ID()); got != d.ERC20 {
		t.Fatalf("transfer routes to %s after disable", got)
	}
	if _, err := r.Transfer(ctx, addr1, tokens(1)); err != nil {
		t.Fatalf("Transfer after disable: %v", err)
	}
	if supply, _ := r.TotalSupply(ctx); !supply.Eq(wantSupply) {
		t.Fatalf("disabled module still burns")
	}

	stranger := r.WithBackend(bind.Direct(h, addr1))
	_, err = stranger.SetModuleState(ctx, burn.ModuleID, true)
	expectCode(t, err, model.ErrUnauthorized)
	_, err = stranger.DiamondCut(ctx, nil, model.ZeroAddress, nil)
	expectCode(t, err, model.ErrUnauthorized)
	_, err = stranger.UpdateBurnModule(ctx, 5)
	expectCode(t, err, model.ErrUnauthorized)
}

func TestPlainCutCannotStealModuleSelector(t *testing.T) {
	_, d, r := setup(t)
	cut := []model.FacetCut{{FacetAddress: d.Burn, Action: model.CutReplace, Selectors: []model.Selector{erc20.Transfer.ID()}}}
	_, err := r.DiamondCut(context.Background(), cut, model.ZeroAddress, nil)
	expectCode(t, err, model.ErrModuleSelectorLocked)
}

func TestCutWithInitializer(t *testing.T) {
	h := diamond.NewHost(memstore.New())
	ctx := context.Background()
	d, err := deploy.Standard(ctx, h, deployer, deploy.Options{})
	if err != nil {
		t.Fatalf("Standard: %v", err)
	}
	r := bind.NewRouter(d.Router, bind.Direct(h, deployer))

	// Drop the burn admin functions, then add them back with the
	// initializer run in the same cut.
	sels := []model.Selector{burn.Initialize.ID(), burn.Update.ID(), burn.BurnConfiguration.ID()}
	if _, err := r.DiamondCut(ctx, []model.FacetCut{{Action: model.CutRemove, Selectors: sels}}, model.ZeroAddress, nil); err != nil {
		t.Fatalf("remove: %v", err)
	}
	_, err = r.BurnConfiguration(ctx)
	expectCode(t, err, model.ErrUnknownSelector)

	init, err := bind.Calldata(burn.Initialize, uint64(250))
	if err != nil {
		t.Fatalf("Calldata: %v", err)
	}
	add := []model.FacetCut{{FacetAddress: d.Burn, Action: model.CutAdd, Selectors: sels}}
	if _, err := r.DiamondCut(ctx, add, d.Burn, init); err != nil {
		t.Fatalf("add with init: %v", err)
	}
	cfg, err := r.BurnConfiguration(ctx)
	if err != nil || cfg.RateBasisPoints != 250 || !cfg.Initialized {
		t.Fatalf("BurnConfiguration = %+v, %v", cfg, err)
	}
}

func TestSignedTransactions(t *testing.T) {
	ctx := context.Background()
	signer := func(scheme keys.Scheme, role string) keys.Signer {
		seed, err := keys.DeriveRoleSeed(make([]byte, 32), role)
		if err != nil {
			t.Fatalf("DeriveRoleSeed: %v", err)
		}
		s, err := keys.NewSigner(scheme, seed)
		if err != nil {
			t.Fatalf("NewSigner: %v", err)
		}
		return s
	}
	ownerKey := signer(keys.SchemeEd25519, "owner")
	userKey := signer(keys.SchemeDilithium3, "user")

	h := diamond.NewHost(memstore.New())
	d, err := deploy.Standard(ctx, h, ownerKey.Address(), deploy.Options{})
	if err != nil {
		t.Fatalf("Standard: %v", err)
	}
	owner := bind.NewRouter(d.Router, bind.Signed(h, ownerKey))
	user := owner.WithBackend(bind.Signed(h, userKey))

	if _, err := owner.Transfer(ctx, userKey.Address(), uint256.NewInt(42)); err != nil {
		t.Fatalf("signed Transfer: %v", err)
	}
	if _, err := user.Transfer(ctx, ownerKey.Address(), uint256.NewInt(2)); err != nil {
		t.Fatalf("dilithium Transfer: %v", err)
	}
	if bal, _ := user.BalanceOf(ctx, userKey.Address()); !bal.Eq(uint256.NewInt(40)) {
		t.Fatalf("user balance %s", bal.Dec())
	}
	_, err = user.SetModuleState(ctx, burn.ModuleID, true)
	expectCode(t, err, model.ErrUnauthorized)
	if _, err := owner.SetModuleState(ctx, burn.ModuleID, true); err != nil {
		t.Fatalf("signed SetModuleState: %v", err)
	}
}

func TestRestoreFromSnapshot(t *testing.T) {
	h, d, r := setup(t)
	ctx := context.Background()
	if _, err := r.Transfer(ctx, addr1, uint256.NewInt(7)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	cas := storage.NewMemoryCAS()
	id, err := h.Snapshot(cas)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	restored := memstore.New()
	if err := state.RestoreSnapshot(cas, id, restored); err != nil {
		t.Fatalf("RestoreSnapshot: %v", err)
	}

	h2 := diamond.NewHost(restored, diamond.WithFacets(deploy.Library()...))
	r2 := bind.NewRouter(d.Router, bind.Direct(h2, deployer))
	if bal, err := r2.BalanceOf(ctx, addr1); err != nil || !bal.Eq(uint256.NewInt(7)) {
		t.Fatalf("restored BalanceOf = %v, %v", bal, err)
	}
	if _, err := r2.SetModuleState(ctx, burn.ModuleID, true); err != nil {
		t.Fatalf("SetModuleState on restored host: %v", err)
	}
}

func TestTransferOwnership(t *testing.T) {
	h, _, r := setup(t)
	ctx := context.Background()
	rcpt, err := r.TransferOwnership(ctx, addr1)
	if err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}
	if len(rcpt.LogsByEvent("OwnershipTransferred")) != 1 {
		t.Fatalf("expected OwnershipTransferred")
	}
	_, err = r.SetModuleState(ctx, burn.ModuleID, true)
	expectCode(t, err, model.ErrUnauthorized)
	if _, err := r.WithBackend(bind.Direct(h, addr1)).SetModuleState(ctx, burn.ModuleID, true); err != nil {
		t.Fatalf("new owner SetModuleState: %v", err)
	}
}

func TestLocate(t *testing.T) {
	h, d, _ := setup(t)
	ctx := context.Background()

	if got := deploy.RouterAddress(deployer); got != d.Router {
		t.Fatalf("RouterAddress = %s, want %s", got, d.Router)
	}
	got, err := deploy.Locate(ctx, h, deployer)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != d {
		t.Fatalf("Locate = %+v, want %+v", got, d)
	}

	_, err = deploy.Locate(ctx, h, addr1)
	expectCode(t, err, model.ErrNoCode)
}
