package erc20_test

import (
	"context"
	"testing"

	"github.com/holiman/uint256"

	"xdao.co/diamond/bind"
	"xdao.co/diamond/deploy"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/ledger"
	"xdao.co/diamond/model"
	"xdao.co/diamond/state"
	"xdao.co/diamond/state/memstore"
)

var (
	deployer = model.Address{19: 0xd0}
	alice    = model.Address{19: 0xa1}
	bob      = model.Address{19: 0xb0}
)

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

func balance(t *testing.T, r *bind.Router, a model.Address) *uint256.Int {
	t.Helper()
	v, err := r.BalanceOf(context.Background(), a)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	return v
}

// assertSupplyMatchesBalances checks sum(balances) == totalSupply.
func assertSupplyMatchesBalances(t *testing.T, h *diamond.Host, router model.Address) {
	t.Helper()
	err := h.Inspect(router, func(r state.Reader) error {
		bals, err := ledger.Balances(r)
		if err != nil {
			return err
		}
		sum := new(uint256.Int)
		for _, b := range bals {
			sum.Add(sum, b)
		}
		supply, err := ledger.TotalSupply(r)
		if err != nil {
			return err
		}
		if !sum.Eq(supply) {
			t.Fatalf("sum of balances %s != supply %s", sum.Dec(), supply.Dec())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
}

func TestMetadataAndSupply(t *testing.T) {
	_, _, r := setup(t)
	ctx := context.Background()

	name, err := r.Name(ctx)
	if err != nil || name != "Managed Democracy" {
		t.Fatalf("Name = %q, %v", name, err)
	}
	sym, err := r.Symbol(ctx)
	if err != nil || sym != "MDEM" {
		t.Fatalf("Symbol = %q, %v", sym, err)
	}
	dec, err := r.Decimals(ctx)
	if err != nil || dec != 18 {
		t.Fatalf("Decimals = %d, %v", dec, err)
	}
	supply, err := r.TotalSupply(ctx)
	if err != nil || !supply.Eq(deploy.DefaultSupply) {
		t.Fatalf("TotalSupply = %v, %v", supply, err)
	}
	if !balance(t, r, deployer).Eq(supply) {
		t.Fatalf("deployer does not hold the supply")
	}
}

func TestInitializeOnce(t *testing.T) {
	_, _, r := setup(t)
	_, err := r.InitializeERC20(context.Background(), "Other", "OTH", uint256.NewInt(1), alice)
	expectCode(t, err, model.ErrAlreadyInitialized)
}

func TestTransfer(t *testing.T) {
	h, d, r := setup(t)
	ctx := context.Background()

	rcpt, err := r.Transfer(ctx, alice, uint256.NewInt(1000))
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if len(rcpt.LogsByEvent("Transfer")) != 1 || len(rcpt.LogsByEvent("TransferWithBurn")) != 0 {
		t.Fatalf("unexpected logs %+v", rcpt.Logs)
	}
	if !balance(t, r, alice).Eq(uint256.NewInt(1000)) {
		t.Fatalf("alice balance %s", balance(t, r, alice).Dec())
	}

	// Self-transfer leaves the balance unchanged.
	a := r.WithBackend(bind.Direct(h, alice))
	if _, err := a.Transfer(ctx, alice, uint256.NewInt(400)); err != nil {
		t.Fatalf("self Transfer: %v", err)
	}
	if !balance(t, r, alice).Eq(uint256.NewInt(1000)) {
		t.Fatalf("self transfer changed balance")
	}

	_, err = a.Transfer(ctx, bob, uint256.NewInt(1001))
	expectCode(t, err, model.ErrInsufficientBalance)
	_, err = a.Transfer(ctx, model.ZeroAddress, uint256.NewInt(1))
	expectCode(t, err, model.ErrZeroAddressRecipient)

	assertSupplyMatchesBalances(t, h, d.Router)
}

func TestApproveAndTransferFrom(t *testing.T) {
	h, d, r := setup(t)
	ctx := context.Background()
	b := r.WithBackend(bind.Direct(h, bob))

	rcpt, err := r.Approve(ctx, bob, uint256.NewInt(500))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if len(rcpt.LogsByEvent("Approval")) != 1 {
		t.Fatalf("expected Approval")
	}
	if _, err := b.TransferFrom(ctx, deployer, alice, uint256.NewInt(300)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	left, err := r.Allowance(ctx, deployer, bob)
	if err != nil || !left.Eq(uint256.NewInt(200)) {
		t.Fatalf("Allowance = %v, %v", left, err)
	}
	_, err = b.TransferFrom(ctx, deployer, alice, uint256.NewInt(201))
	expectCode(t, err, model.ErrInsufficientAllowance)

	max := new(uint256.Int).SetAllOne()
	if _, err := r.Approve(ctx, bob, max); err != nil {
		t.Fatalf("Approve max: %v", err)
	}
	if _, err := b.TransferFrom(ctx, deployer, alice, uint256.NewInt(1000)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	left, err = r.Allowance(ctx, deployer, bob)
	if err != nil || !left.Eq(max) {
		t.Fatalf("infinite allowance was decremented: %v, %v", left, err)
	}
	if !balance(t, r, alice).Eq(uint256.NewInt(1300)) {
		t.Fatalf("alice balance %s", balance(t, r, alice).Dec())
	}

	_, err = r.Approve(ctx, model.ZeroAddress, uint256.NewInt(1))
	expectCode(t, err, model.ErrZeroAddressRecipient)

	assertSupplyMatchesBalances(t, h, d.Router)
}

func TestFailedTransferLeavesNoTrace(t *testing.T) {
	h, _, r := setup(t)
	ctx := context.Background()
	nonce, err := h.Nonce(ctx, alice)
	if err != nil {
		t.Fatalf("Nonce: %v", err)
	}
	_, err = r.WithBackend(bind.Direct(h, alice)).Transfer(ctx, bob, uint256.NewInt(1))
	expectCode(t, err, model.ErrInsufficientBalance)
	if after, _ := h.Nonce(ctx, alice); after != nonce {
		t.Fatalf("failed call consumed a nonce")
	}
	if !balance(t, r, bob).IsZero() {
		t.Fatalf("failed transfer credited bob")
	}
}
