// Copyright 2025 The Narrator Kernel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kernelerrors defines the closed error taxonomy the kernel's
// components raise (spec §7), so call sites can switch on a Kind instead
// of matching error strings.
package kernelerrors

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error categories the kernel raises.
type Kind string

const (
	InvalidConfig       Kind = "invalid-config"
	InvalidArgument     Kind = "invalid-argument"
	UnknownAction       Kind = "unknown-action"
	MissingParameter    Kind = "missing-parameter"
	UnknownParameter    Kind = "unknown-parameter"
	ProviderUnavailable Kind = "provider-unavailable"
	ProviderValidation  Kind = "provider-validation"
	ProviderError       Kind = "provider-error"
	RuleError           Kind = "rule-error"
	InterruptError      Kind = "interrupt-error"
	IOError             Kind = "io-error"
)

// Error is the concrete error type every kernel component returns for a
// taxonomy failure. It wraps an optional cause and always exposes Kind().
type Error struct {
	kind    Kind
	message string
	cause   error
}

// New builds an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Newf builds an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around a lower-level cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the error's taxonomy category.
func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error,
// returning ok=false otherwise. Call sites use this to map an error to a
// retry/reject reason code or a CLI exit code without a type switch.
func KindOf(err error) (Kind, bool) {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.kind, true
	}
	return "", false
}
