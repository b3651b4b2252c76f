// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package moerr defines the coded errors shared by the whole engine.
// Logic errors (bad types, mismatched sizes, invalid ranges) are raised on
// the calling goroutine before any kernel work starts; runtime errors (OOM,
// interrupted execution) surface from the memory pool or the process.
package moerr

import (
	"context"
	"errors"
	"fmt"
)

const (
	// 0 - 99 is OK. Special handled, no alloc.
	Ok uint16 = 0

	OkMax uint16 = 99

	// Group 1: internal errors
	ErrStart            uint16 = 20100
	ErrInternal         uint16 = 20101
	ErrNYI              uint16 = 20102
	ErrOOM              uint16 = 20103
	ErrQueryInterrupted uint16 = 20104
	ErrNotSupported     uint16 = 20105

	// Group 2: invalid input, detected before any kernel is launched
	ErrInvalidInput    uint16 = 20300
	ErrTypeMismatch    uint16 = 20301
	ErrSizeNotMatch    uint16 = 20302
	ErrUnsupportedType uint16 = 20303
	ErrIndexOutOfRange uint16 = 20304
	ErrInvalidRange    uint16 = 20305
	ErrBadConfig       uint16 = 20306
	ErrDivByZero       uint16 = 20307
	ErrEmptyVector     uint16 = 20308
	ErrInvalidState    uint16 = 20309
	ErrBadCompress     uint16 = 20310

	// Group End: max value of error code
	ErrEnd uint16 = 65535
)

type errorItem struct {
	errorMsgOrFormat string
}

var errorMsgRefer = map[uint16]errorItem{
	ErrInternal:         {"internal error: %s"},
	ErrNYI:              {"%s is not yet implemented"},
	ErrOOM:              {"out of memory"},
	ErrQueryInterrupted: {"query interrupted"},
	ErrNotSupported:     {"%s is not supported"},

	ErrInvalidInput:    {"invalid input: %s"},
	ErrTypeMismatch:    {"type mismatch: %s"},
	ErrSizeNotMatch:    {"%s size does not match"},
	ErrUnsupportedType: {"unsupported type: %s"},
	ErrIndexOutOfRange: {"index out of range: %d of %d"},
	ErrInvalidRange:    {"invalid %s range [%d, %d)"},
	ErrBadConfig:       {"invalid configuration: %s"},
	ErrDivByZero:       {"division by zero"},
	ErrEmptyVector:     {"vector is empty"},
	ErrInvalidState:    {"invalid state: %s"},
	ErrBadCompress:     {"bad compressed payload: %s"},
}

// Error is the only error type the engine produces. The code decides how a
// caller may react: codes in group 2 are contract violations and are never
// retried.
type Error struct {
	code    uint16
	message string
}

func newError(_ context.Context, code uint16, args ...any) *Error {
	item, has := errorMsgRefer[code]
	if !has {
		panic(fmt.Sprintf("missing error code: %d", code))
	}
	if len(args) == 0 {
		return &Error{code: code, message: item.errorMsgOrFormat}
	}
	return &Error{code: code, message: fmt.Sprintf(item.errorMsgOrFormat, args...)}
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) Succeeded() bool {
	return e.code <= OkMax
}

// IsMoErrCode returns true if the error is an engine error carrying the
// given code.
func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}
	var me *Error
	if !errors.As(e, &me) {
		return false
	}
	return me.code == rc
}

func NewInternalError(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInternal, fmt.Sprintf(msg, args...))
}

func NewInternalErrorNoCtx(msg string, args ...any) *Error {
	return NewInternalError(context.Background(), msg, args...)
}

func NewNYI(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrNYI, fmt.Sprintf(msg, args...))
}

func NewOOM(ctx context.Context) *Error {
	return newError(ctx, ErrOOM)
}

func NewOOMNoCtx() *Error {
	return NewOOM(context.Background())
}

func NewQueryInterrupted(ctx context.Context) *Error {
	return newError(ctx, ErrQueryInterrupted)
}

func NewNotSupported(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrNotSupported, fmt.Sprintf(msg, args...))
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInvalidInput, fmt.Sprintf(msg, args...))
}

func NewInvalidInputNoCtx(msg string, args ...any) *Error {
	return NewInvalidInput(context.Background(), msg, args...)
}

func NewTypeMismatch(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrTypeMismatch, fmt.Sprintf(msg, args...))
}

func NewTypeMismatchNoCtx(msg string, args ...any) *Error {
	return NewTypeMismatch(context.Background(), msg, args...)
}

func NewSizeNotMatch(ctx context.Context, name string) *Error {
	return newError(ctx, ErrSizeNotMatch, name)
}

func NewSizeNotMatchNoCtx(name string) *Error {
	return NewSizeNotMatch(context.Background(), name)
}

func NewUnsupportedType(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrUnsupportedType, fmt.Sprintf(msg, args...))
}

func NewUnsupportedTypeNoCtx(msg string, args ...any) *Error {
	return NewUnsupportedType(context.Background(), msg, args...)
}

func NewIndexOutOfRange(ctx context.Context, idx, n int64) *Error {
	return newError(ctx, ErrIndexOutOfRange, idx, n)
}

func NewIndexOutOfRangeNoCtx(idx, n int64) *Error {
	return NewIndexOutOfRange(context.Background(), idx, n)
}

func NewInvalidRange(ctx context.Context, name string, start, end int64) *Error {
	return newError(ctx, ErrInvalidRange, name, start, end)
}

func NewInvalidRangeNoCtx(name string, start, end int64) *Error {
	return NewInvalidRange(context.Background(), name, start, end)
}

func NewBadConfig(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrBadConfig, fmt.Sprintf(msg, args...))
}

func NewDivByZero(ctx context.Context) *Error {
	return newError(ctx, ErrDivByZero)
}

func NewEmptyVector(ctx context.Context) *Error {
	return newError(ctx, ErrEmptyVector)
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInvalidState, fmt.Sprintf(msg, args...))
}

func NewBadCompress(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrBadCompress, fmt.Sprintf(msg, args...))
}

func NewBadCompressNoCtx(msg string, args ...any) *Error {
	return NewBadCompress(context.Background(), msg, args...)
}

// ConvertGoError wraps a plain Go error into an engine error. Engine errors
// and context errors pass through unchanged so callers can still match on
// them.
func ConvertGoError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var me *Error
	if errors.As(err, &me) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return NewInternalError(ctx, "convert go error to mo error %v", err)
}
