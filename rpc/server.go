// Package rpc serves a diamond host over gRPC and provides a client that
// satisfies bind.Chain.
package rpc

import (
	"context"
	"encoding/json"

	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/diamond/diamond"
	"xdao.co/diamond/model"
	"xdao.co/diamond/state"
	"xdao.co/diamond/storage"
	"xdao.co/diamond/txn"
)

// Server exposes a diamond.Host over the Router gRPC service.
type Server struct {
	UnimplementedRouterServer
	Host *diamond.Host
	// CAS stores snapshots. Snapshot RPCs fail when it is nil.
	CAS storage.CAS
	Log zerolog.Logger
}

func (s *Server) host() (*diamond.Host, error) {
	if s == nil || s.Host == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing host")
	}
	return s.Host, nil
}

func (s *Server) Submit(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	h, err := s.host()
	if err != nil {
		return nil, err
	}
	t, err := txn.Unmarshal(in.GetValue())
	if err != nil {
		return nil, toStatus(model.WrapError(model.ErrInvalidCall, "malformed transaction", err))
	}
	rcpt, err := h.Submit(ctx, t)
	if err != nil {
		s.Log.Debug().Err(err).Str("from", t.Sender().String()).Msg("rpc submit reverted")
		return nil, toStatus(err)
	}
	b, err := json.Marshal(rcpt)
	if err != nil {
		return nil, status.Error(codes.Internal, "receipt encoding failed")
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Call(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	h, err := s.host()
	if err != nil {
		return nil, err
	}
	msg, err := decodeMsg(in.GetValue())
	if err != nil {
		return nil, toStatus(model.WrapError(model.ErrInvalidCall, "malformed call", err))
	}
	out, err := h.StaticCall(ctx, msg)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(out), nil
}

func (s *Server) Nonce(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	h, err := s.host()
	if err != nil {
		return nil, err
	}
	addr, err := model.ParseAddress(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	n, err := h.Nonce(ctx, addr)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(n), nil
}

func (s *Server) FacetAddress(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	h, err := s.host()
	if err != nil {
		return nil, err
	}
	router, sel, err := decodeLookup(in.GetValue())
	if err != nil {
		return nil, toStatus(model.WrapError(model.ErrInvalidCall, "malformed lookup", err))
	}
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}
	var impl model.Address
	err = h.Inspect(router, func(r state.Reader) error {
		var ok bool
		var err error
		impl, ok, err = diamond.Lookup(r, sel)
		if err == nil && !ok {
			err = model.Errorf(model.ErrUnknownSelector, "selector %s is not routed", sel)
		}
		return err
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(impl.String()), nil
}

func (s *Server) Snapshot(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	h, err := s.host()
	if err != nil {
		return nil, err
	}
	if s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing snapshot store")
	}
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}
	id, err := h.Snapshot(s.CAS)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(id.String()), nil
}

func (s *Server) GetSnapshot(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.CAS == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing snapshot store")
	}
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	b, err := s.CAS.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(b), nil
}
