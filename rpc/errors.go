package rpc

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/diamond/model"
	"xdao.co/diamond/storage"
)

// statusCode is the gRPC code a revert code travels as.
func statusCode(c model.ErrorCode) codes.Code {
	switch c {
	case model.ErrUnauthorized, model.ErrInvalidSignature:
		return codes.PermissionDenied
	case model.ErrUnknownSelector, model.ErrUnknownModule, model.ErrNoCode:
		return codes.NotFound
	case model.ErrDuplicateRegistration, model.ErrModuleAlreadyRegistered, model.ErrAlreadyInitialized:
		return codes.AlreadyExists
	case model.ErrInvalidBurnRate, model.ErrZeroAddressRecipient, model.ErrInvalidCut,
		model.ErrInvalidModuleConfig, model.ErrInvalidCall:
		return codes.InvalidArgument
	case model.ErrInternal:
		return codes.Internal
	default:
		return codes.FailedPrecondition
	}
}

// toStatus converts a host error into a gRPC status. Reverts carry their
// code as the message prefix ("Code: message") so clients can rebuild them.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	if errors.Is(err, storage.ErrNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	if errors.Is(err, storage.ErrInvalidCID) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	var ce *model.CodedError
	if errors.As(err, &ce) {
		msg := string(ce.Code)
		if ce.Message != "" {
			msg += ": " + ce.Message
		}
		return status.Error(statusCode(ce.Code), msg)
	}
	return status.Error(codes.Internal, err.Error())
}

func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	code, msg, _ := strings.Cut(st.Message(), ": ")
	if model.IsKnownCode(model.ErrorCode(code)) {
		return model.NewError(model.ErrorCode(code), msg)
	}
	switch st.Message() {
	case storage.ErrNotFound.Error():
		return storage.ErrNotFound
	case storage.ErrInvalidCID.Error():
		return storage.ErrInvalidCID
	}
	return err
}
