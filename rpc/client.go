package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ipfs/go-cid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/diamond/cidutil"
	"xdao.co/diamond/model"
	"xdao.co/diamond/storage"
	"xdao.co/diamond/txn"
)

// Client talks to a Router gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client RouterClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return NewClient(cc), nil
}

// NewClient wraps an existing connection.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewRouterClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Submit sends a signed transaction and returns its receipt.
func (c *Client) Submit(ctx context.Context, t *txn.Transaction) (*model.Receipt, error) {
	b, err := t.Marshal()
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Submit(ctx, wrapperspb.Bytes(b))
	if err != nil {
		return nil, mapRPC(err)
	}
	var rcpt model.Receipt
	if err := json.Unmarshal(reply.GetValue(), &rcpt); err != nil {
		return nil, model.WrapError(model.ErrInternal, "decode receipt", err)
	}
	return &rcpt, nil
}

func (c *Client) StaticCall(ctx context.Context, msg model.Msg) ([]byte, error) {
	b, err := encodeMsg(msg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Call(ctx, wrapperspb.Bytes(b))
	if err != nil {
		return nil, mapRPC(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) Nonce(ctx context.Context, addr model.Address) (uint64, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Nonce(ctx, wrapperspb.String(addr.String()))
	if err != nil {
		return 0, mapRPC(err)
	}
	return reply.GetValue(), nil
}

// FacetAddress reads router's dispatch table directly, without going
// through a loupe facet.
func (c *Client) FacetAddress(ctx context.Context, router model.Address, sel model.Selector) (model.Address, error) {
	b, err := encodeLookup(router, sel)
	if err != nil {
		return model.Address{}, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.FacetAddress(ctx, wrapperspb.Bytes(b))
	if err != nil {
		return model.Address{}, mapRPC(err)
	}
	return model.ParseAddress(reply.GetValue())
}

// Snapshot asks the server to store its state and returns the snapshot id.
func (c *Client) Snapshot(ctx context.Context) (cid.Cid, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Snapshot(ctx, &emptypb.Empty{})
	if err != nil {
		return cid.Undef, mapRPC(err)
	}
	id, err := cid.Decode(reply.GetValue())
	if err != nil || !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}
	return id, nil
}

// GetSnapshot fetches snapshot bytes and checks them against id.
func (c *Client) GetSnapshot(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.GetSnapshot(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return nil, mapRPC(err)
	}
	b := reply.GetValue()
	got, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return nil, err
	}
	if !got.Equals(id) {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
