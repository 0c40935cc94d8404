package model

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable, machine-readable reason a call reverted.
// Callers should branch on codes (CodeOf, IsCode) rather than on messages.
type ErrorCode string

const (
	ErrUnauthorized            ErrorCode = "Unauthorized"
	ErrUnknownSelector         ErrorCode = "UnknownSelector"
	ErrUnknownModule           ErrorCode = "UnknownModule"
	ErrDuplicateRegistration   ErrorCode = "DuplicateRegistration"
	ErrNoOpReplace             ErrorCode = "NoOpReplace"
	ErrModuleAlreadyRegistered ErrorCode = "ModuleAlreadyRegistered"
	ErrAlreadyInitialized      ErrorCode = "AlreadyInitialized"
	ErrInvalidBurnRate         ErrorCode = "InvalidBurnRate"
	ErrInsufficientBalance     ErrorCode = "InsufficientBalance"
	ErrZeroAddressRecipient    ErrorCode = "ZeroAddressRecipient"

	ErrInvalidCut            ErrorCode = "InvalidCut"
	ErrNoCode                ErrorCode = "NoCode"
	ErrInvalidModuleConfig   ErrorCode = "InvalidModuleConfig"
	ErrModuleSelectorLocked  ErrorCode = "ModuleSelectorLocked"
	ErrInsufficientAllowance ErrorCode = "InsufficientAllowance"
	ErrNotInitialized        ErrorCode = "NotInitialized"
	ErrInvalidCall           ErrorCode = "InvalidCall"
	ErrWriteProtection       ErrorCode = "WriteProtection"
	ErrInvalidSignature      ErrorCode = "InvalidSignature"
	ErrInvalidNonce          ErrorCode = "InvalidNonce"
	ErrInternal              ErrorCode = "Internal"
)

// KnownCodes lists every code in declaration order.
var KnownCodes = []ErrorCode{
	ErrUnauthorized, ErrUnknownSelector, ErrUnknownModule, ErrDuplicateRegistration,
	ErrNoOpReplace, ErrModuleAlreadyRegistered, ErrAlreadyInitialized, ErrInvalidBurnRate,
	ErrInsufficientBalance, ErrZeroAddressRecipient, ErrInvalidCut, ErrNoCode,
	ErrInvalidModuleConfig, ErrModuleSelectorLocked, ErrInsufficientAllowance,
	ErrNotInitialized, ErrInvalidCall, ErrWriteProtection, ErrInvalidSignature,
	ErrInvalidNonce, ErrInternal,
}

// CodedError is a revert with a machine-readable code and a human message.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// Errorf builds a CodedError with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *CodedError {
	return &CodedError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code to cause.
func WrapError(code ErrorCode, message string, cause error) *CodedError {
	return &CodedError{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first CodedError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *CodedError
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// IsCode reports whether err is (or wraps) a CodedError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsKnownCode reports whether code is one of KnownCodes.
func IsKnownCode(code ErrorCode) bool {
	for _, c := range KnownCodes {
		if c == code {
			return true
		}
	}
	return false
}
