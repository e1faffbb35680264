package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrEmptyBatch   = errors.New("batch source produced no titles")
	ErrPageMissing  = errors.New("page does not exist")
	ErrEmptyContent = errors.New("page has no content")
	ErrNotFound     = errors.New("record not found")
	ErrLocked       = errors.New("store is locked by another batch")
	ErrNoSource     = errors.New("no page source configured")
)

// FetchError wraps errors that occur while retrieving a source page.
type FetchError struct {
	Title      string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %q (status %d): %v", e.Title, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %q: %v", e.Title, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError wraps errors that occur while extracting a field or section.
type ParseError struct {
	Title string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %q (field=%q): %v", e.Title, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur in a store backend.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("storage error (%s %s): %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the record pipeline.
type PipelineError struct {
	Stage string
	Slug  string
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Slug != "" {
		return fmt.Sprintf("pipeline error at stage %q (slug=%s): %v", e.Stage, e.Slug, e.Err)
	}
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
