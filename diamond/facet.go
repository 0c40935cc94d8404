package diamond

import (
	"sort"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/diamond/abi"
	"xdao.co/diamond/cidutil"
	"xdao.co/diamond/model"
)

// Facet is deployable implementation code.
//
// Name identifies the code in the Host's library and must be stable across
// restarts: persisted deployments refer to code by name.
type Facet interface {
	Name() string
	Methods() []abi.Method
	Call(env *Env, sel model.Selector, input []byte) ([]byte, error)
}

// Handler implements one method. args are the decoded inputs; the returned
// values are encoded with the method's output types.
type Handler func(env *Env, args []any) ([]any, error)

type boundMethod struct {
	method  abi.Method
	handler Handler
}

// MethodSet is a Facet built from a table of handlers.
type MethodSet struct {
	name    string
	order   []model.Selector
	methods map[model.Selector]boundMethod
}

var _ Facet = (*MethodSet)(nil)

// NewMethodSet returns an empty facet named name.
func NewMethodSet(name string) *MethodSet {
	return &MethodSet{name: name, methods: make(map[model.Selector]boundMethod)}
}

// Handle binds h to m. Binding two methods with the same selector panics.
func (s *MethodSet) Handle(m abi.Method, h Handler) *MethodSet {
	id := m.ID()
	if _, dup := s.methods[id]; dup {
		panic("diamond: duplicate selector " + id.String() + " in " + s.name)
	}
	s.methods[id] = boundMethod{method: m, handler: h}
	s.order = append(s.order, id)
	return s
}

func (s *MethodSet) Name() string { return s.name }

// Methods returns the bound methods in registration order.
func (s *MethodSet) Methods() []abi.Method {
	out := make([]abi.Method, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.methods[id].method)
	}
	return out
}

// Selectors returns the selectors of the bound methods in registration order.
func (s *MethodSet) Selectors() []model.Selector {
	return append([]model.Selector(nil), s.order...)
}

func (s *MethodSet) Call(env *Env, sel model.Selector, input []byte) ([]byte, error) {
	bm, ok := s.methods[sel]
	if !ok {
		return nil, model.Errorf(model.ErrUnknownSelector, "%s has no function %s", s.name, sel)
	}
	args, err := bm.method.DecodeInput(input)
	if err != nil {
		return nil, err
	}
	out, err := bm.handler(env, args)
	if err != nil {
		return nil, err
	}
	return bm.method.EncodeOutput(out...)
}

// SelectorsOf returns the selectors of every method f exposes.
func SelectorsOf(f Facet) []model.Selector {
	ms := f.Methods()
	out := make([]model.Selector, len(ms))
	for i, m := range ms {
		out[i] = m.ID()
	}
	return out
}

// Descriptor is the canonical text identifying a facet's code: its name
// followed by its sorted method signatures, one per line.
func Descriptor(f Facet) []byte {
	sigs := make([]string, 0, len(f.Methods()))
	for _, m := range f.Methods() {
		sigs = append(sigs, m.Signature())
	}
	sort.Strings(sigs)
	return []byte(f.Name() + "\n" + strings.Join(sigs, "\n"))
}

// CodeCID returns the content id of a facet's descriptor.
func CodeCID(f Facet) (cid.Cid, error) {
	return cidutil.CIDv1RawKeccak256CID(Descriptor(f))
}

// invoke splits calldata and calls f.
func invoke(f Facet, env *Env, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, model.Errorf(model.ErrUnknownSelector, "calldata too short (%d bytes)", len(data))
	}
	var sel model.Selector
	copy(sel[:], data[:4])
	return f.Call(env, sel, data[4:])
}
