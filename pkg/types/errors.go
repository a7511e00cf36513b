// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

var (
	ErrSourceUnreadable = errors.New("source directory unreadable")
	ErrNoNotes          = errors.New("no notes found")
	ErrPartialFailure   = errors.New("one or more notes failed")
	ErrNoNoteRoot       = errors.New("note root container not found")
	ErrMissingCreated   = errors.New("note has no created timestamp")
	ErrInvalidCreated   = errors.New("created timestamp is not a valid file name part")
	ErrAllEnginesFailed = errors.New("all pdf engines failed")
	ErrToolUnavailable  = errors.New("tool not available")
)
