// Package source abstracts where a function's source text lives.
//
// A Resource is either owned — the text is copied at construction and
// belongs to the resource — or external — a caller-supplied handle the
// resource never owns and whose declaration decides whether it may be read
// from a thread that does not own the runtime heap. That declaration, not
// the size or content of the text, is the sole input to the background
// parsing decision.
package source

// ExternalString is a caller-owned source text handle. The handle must
// outlive every Resource built from it; the pipeline never takes ownership.
type ExternalString interface {
	// Text returns the source text.
	Text() string

	// Len returns the length of the source text in bytes.
	Len() int

	// BackgroundSafe reports whether the handle may be read from a
	// thread other than the one that owns the runtime heap.
	BackgroundSafe() bool
}

// Resource is a tagged variant over the two source shapes.
type Resource struct {
	owned bool
	text  string
	ext   ExternalString
}

// FromText creates an owned resource holding its own copy of text.
// Owned resources force main-thread parsing: the construction path touches
// heap-allocated string storage, so background access is never granted even
// though the copy itself would be safe to read.
func FromText(text string) *Resource {
	return &Resource{owned: true, text: text}
}

// FromExternal creates a resource backed by a caller-owned handle.
// The handle must outlive the resource.
func FromExternal(ext ExternalString) *Resource {
	return &Resource{ext: ext}
}

// Owned reports whether the resource holds its own copy of the text.
func (r *Resource) Owned() bool { return r.owned }

// Len returns the length of the source text in bytes.
func (r *Resource) Len() int {
	if r.owned {
		return len(r.text)
	}
	return r.ext.Len()
}

// Text returns the source text. For external resources this dereferences
// the caller's handle; callers off the main thread must first check
// BackgroundSafe.
func (r *Resource) Text() string {
	if r.owned {
		return r.text
	}
	return r.ext.Text()
}

// BackgroundSafe reports whether the text may be read from a background
// thread: true only for external resources whose handle declares it.
func (r *Resource) BackgroundSafe() bool {
	return !r.owned && r.ext.BackgroundSafe()
}

// StaticString is a ready-made ExternalString over a Go string with an
// explicit background-safety declaration.
type StaticString struct {
	Data string
	Safe bool
}

// NewStaticString creates a StaticString handle.
func NewStaticString(data string, backgroundSafe bool) *StaticString {
	return &StaticString{Data: data, Safe: backgroundSafe}
}

// Text implements ExternalString.
func (s *StaticString) Text() string { return s.Data }

// Len implements ExternalString.
func (s *StaticString) Len() int { return len(s.Data) }

// BackgroundSafe implements ExternalString.
func (s *StaticString) BackgroundSafe() bool { return s.Safe }
