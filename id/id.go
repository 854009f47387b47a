// Package id defines TypeID-based identity types for all Tide entities.
//
// Every entity in the pipeline uses a single ID struct with a prefix that
// identifies the entity type. IDs are K-sortable (UUIDv7-based), globally
// unique, and URL-safe in the format "prefix_suffix".
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Tide entity types.
const (
	PrefixJob      Prefix = "job"
	PrefixScript   Prefix = "script"
	PrefixFunction Prefix = "fn"
	PrefixWorker   Prefix = "wkr"
	PrefixTask     Prefix = "task"
)

// ID is the primary identifier type for all Tide entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receiver for UnmarshalText.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "job_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// Prefix returns the entity-type prefix of the ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// String returns the full "prefix_suffix" representation.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// IsNil reports whether the ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// ──────────────────────────────────────────────────
// Type aliases per entity
// ──────────────────────────────────────────────────

// JobID is a type-safe identifier for compile jobs (prefix: "job").
type JobID = ID

// ScriptID is a type-safe identifier for scripts (prefix: "script").
type ScriptID = ID

// FunctionID is a type-safe identifier for compilation units (prefix: "fn").
type FunctionID = ID

// WorkerID is a type-safe identifier for engine workers (prefix: "wkr").
type WorkerID = ID

// TaskID is a type-safe identifier for engine tasks (prefix: "task").
type TaskID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewJobID generates a new unique compile-job ID.
func NewJobID() ID { return New(PrefixJob) }

// NewScriptID generates a new unique script ID.
func NewScriptID() ID { return New(PrefixScript) }

// NewFunctionID generates a new unique function ID.
func NewFunctionID() ID { return New(PrefixFunction) }

// NewWorkerID generates a new unique worker ID.
func NewWorkerID() ID { return New(PrefixWorker) }

// NewTaskID generates a new unique task ID.
func NewTaskID() ID { return New(PrefixTask) }
