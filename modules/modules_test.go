package modules_test

import (
	"context"
	"testing"

	"xdao.co/diamond/abi"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/model"
	"xdao.co/diamond/modules"
	"xdao.co/diamond/state"
	"xdao.co/diamond/state/memstore"
)

var (
	owner    = model.Address{19: 0x01}
	stranger = model.Address{19: 0x02}

	moduleID = abi.ModuleIDOf("BurnOnTransaction")

	registerMethod = abi.Method{Name: "register", Inputs: []abi.Type{abi.Bytes32, abi.Address, abi.Address, abi.SliceOf(abi.Bytes4)}}
	setStateMethod = abi.Method{Name: "setState", Inputs: []abi.Type{abi.Bytes32, abi.Bool}}
	failAfter      = abi.Method{Name: "setStateThenFail", Inputs: []abi.Type{abi.Bytes32, abi.Bool}}
	whichMethod    = abi.Method{Name: "which", Outputs: []abi.Type{abi.String}}
	otherMethod    = abi.Method{Name: "other", Outputs: []abi.Type{abi.String}}
)

func selectorsOf(v any) []model.Selector {
	var out []model.Selector
	for _, s := range v.([]any) {
		out = append(out, s.(model.Selector))
	}
	return out
}

func newAdminFacet() *diamond.MethodSet {
	return diamond.NewMethodSet("test.Admin").
		Handle(diamond.DiamondCutMethod, func(env *diamond.Env, args []any) ([]any, error) {
			cuts, err := diamond.CutsFromABI(args[0])
			if err != nil {
				return nil, err
			}
			return nil, diamond.Apply(env, cuts, diamond.WithInit(args[1].(model.Address), args[2].([]byte)))
		}).
		Handle(registerMethod, func(env *diamond.Env, args []any) ([]any, error) {
			return nil, modules.Register(env, model.ModuleConfig{
				ID:        model.ModuleID(args[0].(model.Hash)),
				Active:    args[1].(model.Address),
				Inactive:  args[2].(model.Address),
				Selectors: selectorsOf(args[3]),
			})
		}).
		Handle(setStateMethod, func(env *diamond.Env, args []any) ([]any, error) {
			return nil, modules.SetState(env, model.ModuleID(args[0].(model.Hash)), args[1].(bool))
		}).
		Handle(failAfter, func(env *diamond.Env, args []any) ([]any, error) {
			if err := modules.SetState(env, model.ModuleID(args[0].(model.Hash)), args[1].(bool)); err != nil {
				return nil, err
			}
			return nil, model.NewError(model.ErrInternal, "late failure")
		})
}

func newNamedFacet(name string) *diamond.MethodSet {
	return diamond.NewMethodSet(name).
		Handle(whichMethod, func(*diamond.Env, []any) ([]any, error) { return []any{name}, nil }).
		Handle(otherMethod, func(*diamond.Env, []any) ([]any, error) { return []any{name}, nil })
}

type fixture struct {
	host     *diamond.Host
	router   model.Address
	admin    model.Address
	base     model.Address
	feature  model.Address
	unrouted model.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	h := diamond.NewHost(memstore.New())
	deploy := func(f diamond.Facet) model.Address {
		info, err := h.Deploy(ctx, owner, f)
		if err != nil {
			t.Fatalf("Deploy %s: %v", f.Name(), err)
		}
		return info.Address
	}
	f := &fixture{host: h}
	f.admin = deploy(newAdminFacet())
	f.base = deploy(newNamedFacet("test.Base"))
	f.feature = deploy(newNamedFacet("test.Feature"))
	f.unrouted = deploy(newNamedFacet("test.Unrouted"))
	r, err := h.DeployRouter(ctx, owner, owner, f.admin)
	if err != nil {
		t.Fatalf("DeployRouter: %v", err)
	}
	f.router = r.Address

	cuts := []model.FacetCut{
		{FacetAddress: f.admin, Action: model.CutAdd, Selectors: []model.Selector{registerMethod.ID(), setStateMethod.ID(), failAfter.ID()}},
		{FacetAddress: f.base, Action: model.CutAdd, Selectors: []model.Selector{whichMethod.ID()}},
	}
	if _, err := f.call(t, owner, diamond.DiamondCutMethod, diamond.CutsToABI(cuts), model.ZeroAddress, []byte{}); err != nil {
		t.Fatalf("initial cut: %v", err)
	}
	return f
}

func (f *fixture) call(t *testing.T, from model.Address, m abi.Method, args ...any) (*model.Receipt, error) {
	t.Helper()
	data, err := m.EncodeCall(args...)
	if err != nil {
		t.Fatalf("EncodeCall %s: %v", m.Name, err)
	}
	return f.host.Call(context.Background(), model.Msg{From: from, To: f.router, Data: data})
}

func (f *fixture) register(t *testing.T, from model.Address, id model.ModuleID, active, inactive model.Address, sels ...model.Selector) error {
	t.Helper()
	_, err := f.call(t, from, registerMethod, id, active, inactive, sels)
	return err
}

func (f *fixture) which(t *testing.T) string {
	t.Helper()
	data, _ := whichMethod.EncodeCall()
	out, err := f.host.StaticCall(context.Background(), model.Msg{From: stranger, To: f.router, Data: data})
	if err != nil {
		t.Fatalf("which: %v", err)
	}
	v, err := whichMethod.DecodeOutput(out)
	if err != nil {
		t.Fatalf("DecodeOutput: %v", err)
	}
	return v[0].(string)
}

func (f *fixture) config(t *testing.T, id model.ModuleID) (model.ModuleConfig, bool) {
	t.Helper()
	var cfg model.ModuleConfig
	var ok bool
	err := f.host.Inspect(f.router, func(r state.Reader) error {
		var err error
		cfg, ok, err = modules.Get(r, id)
		return err
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return cfg, ok
}

func expectCode(t *testing.T, err error, code model.ErrorCode) {
	t.Helper()
	if !model.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestRegister_StoresDisabledConfig(t *testing.T) {
	f := newFixture(t)
	rcpt, err := f.call(t, owner, registerMethod, moduleID, f.feature, f.base, []model.Selector{whichMethod.ID()})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(rcpt.LogsByEvent("ModuleConfigured")) != 1 {
		t.Fatalf("expected ModuleConfigured, got %+v", rcpt.Logs)
	}
	cfg, ok := f.config(t, moduleID)
	if !ok {
		t.Fatalf("config missing")
	}
	if cfg.Enabled || cfg.Active != f.feature || cfg.Inactive != f.base || len(cfg.Selectors) != 1 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if got := f.which(t); got != "test.Base" {
		t.Fatalf("register changed routing: %s", got)
	}
}

func TestRegister_Errors(t *testing.T) {
	f := newFixture(t)
	if err := f.register(t, owner, moduleID, f.feature, f.base, whichMethod.ID()); err != nil {
		t.Fatalf("register: %v", err)
	}
	other := abi.ModuleIDOf("DeflationaryModule")

	cases := []struct {
		name string
		from model.Address
		id   model.ModuleID
		act  model.Address
		inac model.Address
		sels []model.Selector
		code model.ErrorCode
	}{
		{"stranger", stranger, other, f.feature, f.base, []model.Selector{otherMethod.ID()}, model.ErrUnauthorized},
		{"duplicate id", owner, moduleID, f.feature, f.base, []model.Selector{whichMethod.ID()}, model.ErrModuleAlreadyRegistered},
		{"no selectors", owner, other, f.feature, f.base, nil, model.ErrInvalidModuleConfig},
		{"same impls", owner, other, f.base, f.base, []model.Selector{whichMethod.ID()}, model.ErrInvalidModuleConfig},
		{"zero active", owner, other, model.ZeroAddress, f.base, []model.Selector{whichMethod.ID()}, model.ErrInvalidModuleConfig},
		{"no code", owner, other, model.Address{19: 0xee}, f.base, []model.Selector{whichMethod.ID()}, model.ErrNoCode},
		{"not routed to inactive", owner, other, f.feature, f.unrouted, []model.Selector{whichMethod.ID()}, model.ErrInvalidModuleConfig},
		{"unrouted selector", owner, other, f.feature, f.base, []model.Selector{otherMethod.ID()}, model.ErrInvalidModuleConfig},
		{"claimed selector", owner, other, f.unrouted, f.base, []model.Selector{whichMethod.ID()}, model.ErrInvalidModuleConfig},
		{"repeated selector", owner, other, f.feature, f.base, []model.Selector{whichMethod.ID(), whichMethod.ID()}, model.ErrInvalidModuleConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectCode(t, f.register(t, tc.from, tc.id, tc.act, tc.inac, tc.sels...), tc.code)
		})
	}
	if _, ok := f.config(t, other); ok {
		t.Fatalf("failed registration left a config behind")
	}
}

func TestSetState_Toggles(t *testing.T) {
	f := newFixture(t)
	if err := f.register(t, owner, moduleID, f.feature, f.base, whichMethod.ID()); err != nil {
		t.Fatalf("register: %v", err)
	}

	rcpt, err := f.call(t, owner, setStateMethod, moduleID, true)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if got := f.which(t); got != "test.Feature" {
		t.Fatalf("enabled module routes to %s", got)
	}
	if len(rcpt.LogsByEvent("DiamondCut")) != 1 || len(rcpt.LogsByEvent("ModuleStateChanged")) != 1 {
		t.Fatalf("unexpected logs %+v", rcpt.Logs)
	}
	if cfg, _ := f.config(t, moduleID); !cfg.Enabled {
		t.Fatalf("flag not set")
	}

	if _, err := f.call(t, owner, setStateMethod, moduleID, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if got := f.which(t); got != "test.Base" {
		t.Fatalf("disabled module routes to %s", got)
	}
}

func TestSetState_Idempotent(t *testing.T) {
	f := newFixture(t)
	if err := f.register(t, owner, moduleID, f.feature, f.base, whichMethod.ID()); err != nil {
		t.Fatalf("register: %v", err)
	}
	for i := 0; i < 2; i++ {
		rcpt, err := f.call(t, owner, setStateMethod, moduleID, false)
		if err != nil {
			t.Fatalf("setState(false) #%d: %v", i, err)
		}
		if len(rcpt.LogsByEvent("DiamondCut")) != 0 {
			t.Fatalf("no-op toggle touched the table")
		}
		if len(rcpt.LogsByEvent("ModuleStateChanged")) != 1 {
			t.Fatalf("no-op toggle must still emit ModuleStateChanged")
		}
	}
	if got := f.which(t); got != "test.Base" {
		t.Fatalf("routing changed: %s", got)
	}
}

func TestSetState_Errors(t *testing.T) {
	f := newFixture(t)
	if err := f.register(t, owner, moduleID, f.feature, f.base, whichMethod.ID()); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := f.call(t, stranger, setStateMethod, moduleID, true)
	expectCode(t, err, model.ErrUnauthorized)
	_, err = f.call(t, owner, setStateMethod, abi.ModuleIDOf("DeflationaryModule"), true)
	expectCode(t, err, model.ErrUnknownModule)
}

func TestSetState_FailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	if err := f.register(t, owner, moduleID, f.feature, f.base, whichMethod.ID()); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := f.call(t, owner, failAfter, moduleID, true)
	expectCode(t, err, model.ErrInternal)
	if got := f.which(t); got != "test.Base" {
		t.Fatalf("failed toggle changed routing to %s", got)
	}
	if cfg, _ := f.config(t, moduleID); cfg.Enabled {
		t.Fatalf("failed toggle changed the flag")
	}
}

func TestModuleSelectorsLockedAgainstPlainCuts(t *testing.T) {
	f := newFixture(t)
	if err := f.register(t, owner, moduleID, f.feature, f.base, whichMethod.ID()); err != nil {
		t.Fatalf("register: %v", err)
	}
	cuts := []model.FacetCut{{FacetAddress: f.unrouted, Action: model.CutReplace, Selectors: []model.Selector{whichMethod.ID()}}}
	_, err := f.call(t, owner, diamond.DiamondCutMethod, diamond.CutsToABI(cuts), model.ZeroAddress, []byte{})
	expectCode(t, err, model.ErrModuleSelectorLocked)
}

func TestIsEnabledAndIDs(t *testing.T) {
	f := newFixture(t)
	if err := f.register(t, owner, moduleID, f.feature, f.base, whichMethod.ID()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.call(t, owner, setStateMethod, moduleID, true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	err := f.host.Inspect(f.router, func(r state.Reader) error {
		on, err := modules.IsEnabled(r, moduleID)
		if err != nil || !on {
			t.Fatalf("IsEnabled = %v, %v", on, err)
		}
		on, err = modules.IsEnabled(r, abi.ModuleIDOf("DeflationaryModule"))
		if err != nil || on {
			t.Fatalf("unknown module reported enabled: %v, %v", on, err)
		}
		ids, err := modules.IDs(r)
		if err != nil || len(ids) != 1 || ids[0] != moduleID {
			t.Fatalf("IDs = %v, %v", ids, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
}

func TestConfigABIRoundTrip(t *testing.T) {
	cfg := model.ModuleConfig{ID: moduleID, Active: owner, Inactive: stranger, Selectors: []model.Selector{whichMethod.ID()}, Enabled: true}
	types := []abi.Type{abi.Address, abi.Address, abi.SliceOf(abi.Bytes4), abi.Bool}
	raw, err := abi.Encode(types, modules.ConfigToABI(cfg))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	v, err := abi.Decode(types, raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, err := modules.ConfigFromABI(moduleID, v)
	if err != nil {
		t.Fatalf("ConfigFromABI: %v", err)
	}
	if got.Active != cfg.Active || got.Inactive != cfg.Inactive || !got.Enabled || got.Selectors[0] != cfg.Selectors[0] {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
