package diamond

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"xdao.co/diamond/abi"
	"xdao.co/diamond/model"
	"xdao.co/diamond/state"
	"xdao.co/diamond/storage"
	"xdao.co/diamond/txn"
)

const tracerName = "xdao.co/diamond"

// Host deploys code and executes calls against one state backend.
//
// State-changing calls (Call, Submit, Deploy, DeployRouter) hold the write
// lock for their whole execution, so they form one global total order.
// Static calls hold the read lock and may run concurrently with each other.
// Every call runs on a fresh overlay that is committed only on success.
type Host struct {
	mu      sync.RWMutex
	backend state.Backend

	libMu   sync.RWMutex
	library map[string]Facet

	log    zerolog.Logger
	tracer trace.Tracer
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger for deployments and calls.
func WithLogger(l zerolog.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithTracerProvider traces calls with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Host) { h.tracer = tp.Tracer(tracerName) }
}

// WithFacets links code that persisted deployments may refer to.
func WithFacets(fs ...Facet) Option {
	return func(h *Host) {
		for _, f := range fs {
			h.library[f.Name()] = f
		}
	}
}

// NewHost returns a Host over backend. Facets already deployed in backend
// must be linked with WithFacets or Link before they can be called.
func NewHost(backend state.Backend, opts ...Option) *Host {
	h := &Host{
		backend: backend,
		library: make(map[string]Facet),
		log:     zerolog.Nop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Link makes f resolvable by name. Linking a different facet under a name
// already in use fails.
func (h *Host) Link(f Facet) error {
	h.libMu.Lock()
	defer h.libMu.Unlock()
	if cur, ok := h.library[f.Name()]; ok && string(Descriptor(cur)) != string(Descriptor(f)) {
		return fmt.Errorf("diamond: facet name %q already linked to different code", f.Name())
	}
	h.library[f.Name()] = f
	return nil
}

func (h *Host) facet(info CodeInfo) (Facet, error) {
	if info.Name == RouterCodeName {
		return nil, model.Errorf(model.ErrNoCode, "router %s cannot be delegate-called", info.Address)
	}
	h.libMu.RLock()
	f, ok := h.library[info.Name]
	h.libMu.RUnlock()
	if !ok {
		return nil, model.Errorf(model.ErrNoCode, "code %q at %s is not linked", info.Name, info.Address)
	}
	return f, nil
}

// Deploy places f at the next CREATE address of deployer.
func (h *Host) Deploy(ctx context.Context, deployer model.Address, f Facet) (CodeInfo, error) {
	if err := h.Link(f); err != nil {
		return CodeInfo{}, err
	}
	id, err := CodeCID(f)
	if err != nil {
		return CodeInfo{}, err
	}
	var info CodeInfo
	err = h.create(ctx, "diamond.deploy", deployer, func(tx *state.Tx, addr model.Address) error {
		info = CodeInfo{Address: addr, Name: f.Name(), CID: id}
		return writeCode(tx, info)
	})
	if err != nil {
		return CodeInfo{}, err
	}
	h.log.Info().Str("facet", info.Name).Str("address", info.Address.String()).Str("cid", info.CID.String()).Msg("facet deployed")
	return info, nil
}

// DeployRouter creates a router owned by owner whose dispatch table starts
// with diamondCut routed to cutFacet.
func (h *Host) DeployRouter(ctx context.Context, deployer, owner model.Address, cutFacet model.Address) (CodeInfo, error) {
	id, err := routerCID()
	if err != nil {
		return CodeInfo{}, err
	}
	cutSel := DiamondCutMethod.ID()
	var info CodeInfo
	err = h.create(ctx, "diamond.deploy_router", deployer, func(tx *state.Tx, addr model.Address) error {
		code, ok, err := readCode(tx, cutFacet)
		if err != nil {
			return err
		}
		if !ok {
			return model.Errorf(model.ErrNoCode, "no code at cut facet %s", cutFacet)
		}
		f, err := h.facet(code)
		if err != nil {
			return err
		}
		if !hasSelector(f, cutSel) {
			return model.Errorf(model.ErrInvalidCut, "%s does not implement %s", code.Name, DiamondCutMethod.Signature())
		}
		info = CodeInfo{Address: addr, Name: RouterCodeName, CID: id}
		if err := writeCode(tx, info); err != nil {
			return err
		}
		store := accountStore(tx, addr)
		if err := setOwner(store, owner); err != nil {
			return err
		}
		return setEntry(store, cutSel, cutFacet)
	})
	if err != nil {
		return CodeInfo{}, err
	}
	h.log.Info().Str("router", info.Address.String()).Str("owner", owner.String()).Msg("router deployed")
	return info, nil
}

func hasSelector(f Facet, sel model.Selector) bool {
	for _, s := range SelectorsOf(f) {
		if s == sel {
			return true
		}
	}
	return false
}

func (h *Host) create(ctx context.Context, span string, deployer model.Address, fn func(tx *state.Tx, addr model.Address) error) error {
	ctx, sp := h.tracer.Start(ctx, span, trace.WithAttributes(attribute.String("diamond.from", deployer.String())))
	defer sp.End()
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tx := state.Begin(h.backend)
	defer tx.Discard()
	nonce, err := readNonce(tx, deployer)
	if err != nil {
		return err
	}
	addr := CreateAddress(deployer, nonce)
	if _, exists, err := readCode(tx, addr); err != nil || exists {
		if err == nil {
			err = model.Errorf(model.ErrInternal, "address collision at %s", addr)
		}
		return err
	}
	if err := writeNonce(tx, deployer, nonce+1); err != nil {
		return err
	}
	if err := fn(tx, addr); err != nil {
		sp.RecordError(err)
		sp.SetStatus(codes.Error, string(model.CodeOf(err)))
		return err
	}
	sp.SetAttributes(attribute.String("diamond.address", addr.String()))
	return tx.Commit()
}

type signedCall struct {
	nonce uint64
	hash  model.Hash
}

// Call executes msg as a state-changing call and commits its effects.
// A failed call leaves no trace: state, nonce and logs are discarded.
func (h *Host) Call(ctx context.Context, msg model.Msg) (*model.Receipt, error) {
	return h.transact(ctx, "diamond.call", msg, nil)
}

// Submit verifies a signed transaction, checks its nonce against the
// sender's and executes it like Call. A reverted transaction still
// consumes its nonce so it cannot be replayed; its other effects are
// discarded.
func (h *Host) Submit(ctx context.Context, t *txn.Transaction) (*model.Receipt, error) {
	if _, err := t.Verify(); err != nil {
		return nil, err
	}
	return h.transact(ctx, "diamond.submit", t.Msg(), &signedCall{nonce: t.Nonce, hash: t.Hash()})
}

func (h *Host) transact(ctx context.Context, spanName string, msg model.Msg, signed *signedCall) (*model.Receipt, error) {
	ctx, sp := h.startCall(ctx, spanName, msg)
	defer sp.End()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tx := state.Begin(h.backend)
	defer tx.Discard()

	nonce, err := readNonce(tx, msg.From)
	if err != nil {
		return nil, h.fail(sp, msg, err)
	}
	if signed != nil && signed.nonce != nonce {
		return nil, h.fail(sp, msg, model.Errorf(model.ErrInvalidNonce, "nonce %d, expected %d", signed.nonce, nonce))
	}
	if err := writeNonce(tx, msg.From, nonce+1); err != nil {
		return nil, h.fail(sp, msg, err)
	}

	// The call runs in its own overlay so a revert can keep the nonce bump.
	call := state.Begin(tx)
	defer call.Discard()
	var logs []model.Log
	ret, err := h.execute(ctx, call, msg, &logs)
	if err != nil {
		if signed != nil {
			if cerr := tx.Commit(); cerr != nil {
				return nil, h.fail(sp, msg, model.WrapError(model.ErrInternal, "commit", cerr))
			}
		}
		return nil, h.fail(sp, msg, err)
	}
	if err := call.Commit(); err != nil {
		return nil, h.fail(sp, msg, model.WrapError(model.ErrInternal, "commit", err))
	}
	if err := tx.Commit(); err != nil {
		return nil, h.fail(sp, msg, model.WrapError(model.ErrInternal, "commit", err))
	}

	rec := &model.Receipt{From: msg.From, To: msg.To, Nonce: nonce, Return: ret, Logs: logs}
	if signed != nil {
		rec.TxHash = signed.hash
	} else {
		rec.TxHash = abi.Keccak256(msg.From[:], msg.To[:], binary.BigEndian.AppendUint64(nil, nonce), msg.Data)
	}
	sp.SetAttributes(attribute.Int("diamond.logs", len(logs)))
	h.log.Debug().
		Str("from", msg.From.String()).
		Str("to", msg.To.String()).
		Str("selector", selectorOf(msg.Data)).
		Uint64("nonce", nonce).
		Int("logs", len(logs)).
		Msg("call committed")
	return rec, nil
}

// StaticCall executes msg read-only and returns its output. Any attempted
// write fails with WriteProtection.
func (h *Host) StaticCall(ctx context.Context, msg model.Msg) ([]byte, error) {
	ctx, sp := h.startCall(ctx, "diamond.static_call", msg)
	defer sp.End()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	tx := state.BeginReadOnly(h.backend)
	defer tx.Discard()
	var logs []model.Log
	ret, err := h.execute(ctx, tx, msg, &logs)
	if err != nil {
		sp.RecordError(err)
		sp.SetStatus(codes.Error, string(model.CodeOf(err)))
		return nil, err
	}
	return ret, nil
}

func (h *Host) execute(ctx context.Context, root *state.Tx, msg model.Msg, logs *[]model.Log) ([]byte, error) {
	info, ok, err := readCode(root, msg.To)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.Errorf(model.ErrNoCode, "no code at %s", msg.To)
	}
	value := msg.Value
	if value == nil {
		value = new(uint256.Int)
	}
	env := &Env{
		Ctx:    ctx,
		Caller: msg.From,
		Self:   msg.To,
		Value:  value,
		Store:  accountStore(root, msg.To),
		host:   h,
		root:   root,
		logs:   logs,
	}
	if info.Name == RouterCodeName {
		return Route(env, msg.Data)
	}
	f, err := h.facet(info)
	if err != nil {
		return nil, err
	}
	return invoke(f, env, msg.Data)
}

func (h *Host) startCall(ctx context.Context, name string, msg model.Msg) (context.Context, trace.Span) {
	return h.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("diamond.from", msg.From.String()),
		attribute.String("diamond.to", msg.To.String()),
		attribute.String("diamond.selector", selectorOf(msg.Data)),
	))
}

func (h *Host) fail(sp trace.Span, msg model.Msg, err error) error {
	code := model.CodeOf(err)
	sp.RecordError(err)
	sp.SetStatus(codes.Error, string(code))
	h.log.Warn().
		Str("from", msg.From.String()).
		Str("to", msg.To.String()).
		Str("selector", selectorOf(msg.Data)).
		Str("code", string(code)).
		Err(err).
		Msg("call reverted")
	return err
}

func selectorOf(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	var s model.Selector
	copy(s[:], data)
	return s.String()
}

// Nonce returns the next nonce of addr.
func (h *Host) Nonce(ctx context.Context, addr model.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return readNonce(h.backend, addr)
}

// Code returns the code deployed at addr.
func (h *Host) Code(ctx context.Context, addr model.Address) (CodeInfo, bool, error) {
	if err := ctx.Err(); err != nil {
		return CodeInfo{}, false, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return readCode(h.backend, addr)
}

// Inspect runs fn over the committed storage of addr.
func (h *Host) Inspect(addr model.Address, fn func(r state.Reader) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tx := state.BeginReadOnly(h.backend)
	defer tx.Discard()
	return fn(accountStore(tx, addr))
}

// Snapshot stores the complete committed state in cas.
func (h *Host) Snapshot(cas storage.CAS) (cid.Cid, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, err := state.SaveSnapshot(cas, h.backend)
	if err != nil {
		return cid.Undef, err
	}
	h.log.Info().Str("cid", id.String()).Msg("state snapshot saved")
	return id, nil
}
