package models

import (
	"github.com/cockroachdb/errors"
)

// Error kinds. Stage failures are marked with exactly one of them so the
// boundary can map a failed run without inspecting messages.
var (
	// ErrInput marks empty or unreadable uploads and PDFs without a text fallback.
	ErrInput = errors.New("input error")
	// ErrValidation marks text rejected by the resume sanity check.
	ErrValidation = errors.New("validation error")
	// ErrUpstream marks network, timeout and provider failures of model calls.
	ErrUpstream = errors.New("upstream model error")
	// ErrContract marks model responses missing required fields after parsing.
	ErrContract = errors.New("contract violation")
)

// Mark tags err with the provided kind. A nil err stays nil.
func Mark(err error, kind error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, kind)
}

// Kind returns the first error kind err is marked with, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrInput, ErrValidation, ErrUpstream, ErrContract} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsClientError reports whether err was caused by the submitted resume rather
// than by the pipeline or its upstream providers.
func IsClientError(err error) bool {
	kind := Kind(err)
	return kind == ErrInput || kind == ErrValidation
}
