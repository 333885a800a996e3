// Copyright 2020 Vizier DB.
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

package datastore

import (
	"fmt"

	"github.com/pkg/errors"
)

// NotFoundError signals that a dataset, file, or object with the given identifier does not
// exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown %s '%s'", e.Kind, e.ID)
}

// NewNotFoundError returns a NotFoundError for the given kind of resource.
func NewNotFoundError(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound returns true if any error in the chain is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InvalidInputError signals that the caller supplied arguments the operation cannot act on, such
// as an unknown column identifier or a malformed name.
type InvalidInputError struct {
	Msg string
}

func (e *InvalidInputError) Error() string {
	return e.Msg
}

// NewInvalidInputError returns an InvalidInputError with the given message.
func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Msg: fmt.Sprintf(format, args...)}
}

// IsInvalidInput returns true if any error in the chain is an InvalidInputError.
func IsInvalidInput(err error) bool {
	var ii *InvalidInputError
	return errors.As(err, &ii)
}

// EngineError signals a failure reported by an external execution engine. Op names the request
// that failed.
type EngineError struct {
	Op    string
	Msg   string
	Cause error
}

func (e *EngineError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s failed", e.Op)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// NewEngineError returns an EngineError for the named operation.
func NewEngineError(op, msg string, cause error) error {
	return &EngineError{Op: op, Msg: msg, Cause: cause}
}

// IsEngineError returns true if any error in the chain is an EngineError.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}
