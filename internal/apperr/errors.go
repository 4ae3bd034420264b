// Package apperr holds the sentinel errors shared across packages.
// Callers wrap them with fmt.Errorf("...: %w", ...) and test with errors.Is.
package apperr

import "errors"

// Host errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// Rendering errors.
var (
	// ErrInvalidLink is returned when a link is built without a relation or
	// target, or with a template that does not parse.
	ErrInvalidLink = errors.New("invalid link")

	// ErrSerialization is returned when a document holds a value that has no
	// JSON representation.
	ErrSerialization = errors.New("serialization failed")

	// ErrContextResolution marks a collection whose owning container could not
	// be determined. Renderers log it and omit the context links.
	ErrContextResolution = errors.New("cannot resolve collection context")
)
