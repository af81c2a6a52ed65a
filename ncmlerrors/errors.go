// Copyright 2024 The NCML Aggregation Authors.
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

// Package ncmlerrors holds the error-kind taxonomy surfaced to the host
// runtime. Every kind is a *errors.Kind constructed with
// gopkg.in/src-d/go-errors.v1: construct with .New(args...), test with
// .Is(err).
package ncmlerrors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/src-d/go-errors.v1"
)

var (
	// ErrParse covers document-structure and grammar violations: unknown
	// attributes, misplaced elements, bad numeric literals, regex compile
	// failures. Raised from a parser callback, it reaches the caller inside
	// an ncmlxml.DeferredError that records the source line.
	ErrParse = errors.NewKind("parse error: %s")

	// ErrSyntaxUser covers semantically invalid but well-formed operations:
	// renaming a non-existent attribute, removing a non-existent variable,
	// dimension mismatches on union.
	ErrSyntaxUser = errors.NewKind("invalid operation: %s")

	// ErrNotFound is raised when a member dataset path is not registered in
	// the host's catalog.
	ErrNotFound = errors.NewKind("dataset not found: %s")

	// ErrForbidden is raised on path traversal outside the configured root,
	// or a disallowed symlink.
	ErrForbidden = errors.NewKind("forbidden path: %s")

	// ErrCache covers failure to obtain a required cache file lock, or
	// disk-full while writing a cache entry.
	ErrCache = errors.NewKind("dimension cache error: %s")

	// ErrUnimplemented covers FMRC aggregation types and the scan "enhance"
	// attribute .
	ErrUnimplemented = errors.NewKind("not implemented: %s")

	// ErrInternal marks a contract violation detected at runtime (nil where
	// a value was guaranteed, a type mismatch that overlay/planning should
	// have already rejected).
	ErrInternal = errors.NewKind("internal error: %s")

	// ErrInternalFatal marks a contract violation severe enough that the
	// in-progress parse cannot be recovered; the document tree is torn down.
	ErrInternalFatal = errors.NewKind("internal fatal error: %s")

	// ErrDimensionNotFound is raised by member.Handle.GetCachedDimensionSize
	// when the named dimension isn't present in the per-member cache.
	ErrDimensionNotFound = errors.NewKind("dimension not cached: %s")

	// ErrAggregation covers planner failures annotated with a member's
	// location: missing aggregation variable, type mismatch, shape
	// mismatch, length mismatch .
	ErrAggregation = errors.NewKind("aggregation error: %s")
)

// WithLine annotates an error with the NCML source line it was raised
// at, the way the XML interpreter records deferred-error provenance.
// The returned error still satisfies errors.Is against the original
// kind.
func WithLine(err error, sourceFile string, line int) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, fmt.Sprintf("%s:%d", sourceFile, line))
}

// WithLocation annotates an aggregation-time error with the member dataset
// location string it was raised against .
func WithLocation(err error, location string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, fmt.Sprintf("member %q", location))
}
