// Package job implements the multi-phase compile job that takes one Tide
// compilation unit from source text to an installed artifact.
//
// A job is a strict state machine. Each operation is valid in exactly one
// status and advances to the next; calling an operation out of phase is a
// programming error and panics. All operations run on the job's owner
// goroutine except Parse, which may run on a background goroutine when the
// unit's source resource permits it.
//
// Parse and Compile never raise into the runtime: their failures are
// recorded on the job and surfaced by the following finalisation step on
// the owner goroutine.
package job

import (
	"fmt"
	"log/slog"

	"github.com/tidelang/tide/ast"
	"github.com/tidelang/tide/compiler"
	"github.com/tidelang/tide/id"
	"github.com/tidelang/tide/parser"
	"github.com/tidelang/tide/runtime"
)

// Status is the job's position in the compile pipeline.
type Status int

const (
	StatusInitial Status = iota
	StatusReadyToParse
	StatusParsed
	StatusReadyToAnalyse
	StatusReadyToCompile
	StatusCompiled
	StatusDone
	StatusFailed
)

var statusNames = map[Status]string{
	StatusInitial:        "initial",
	StatusReadyToParse:   "ready_to_parse",
	StatusParsed:         "parsed",
	StatusReadyToAnalyse: "ready_to_analyse",
	StatusReadyToCompile: "ready_to_compile",
	StatusCompiled:       "compiled",
	StatusDone:           "done",
	StatusFailed:         "failed",
}

// String returns the status name used in logs and panics.
func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// FailureKind classifies a recorded failure.
type FailureKind int

const (
	// SyntaxError is malformed source.
	SyntaxError FailureKind = iota
	// StackOverflow means the unit exceeded the job's stack budget during
	// parsing, analysis or code generation.
	StackOverflow
	// InternalError is any other pipeline fault.
	InternalError
)

// String returns the kind name.
func (k FailureKind) String() string {
	switch k {
	case SyntaxError:
		return "syntax_error"
	case StackOverflow:
		return "stack_overflow"
	default:
		return "internal_error"
	}
}

// Failure is a recorded pipeline failure: what went wrong and where.
type Failure struct {
	Kind FailureKind
	Msg  string
	Pos  ast.Position
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s at %d:%d", f.Kind, f.Msg, f.Pos.Line, f.Pos.Col)
}

// Option configures a Job.
type Option func(*Job)

// WithLogger sets the job's logger.
func WithLogger(log *slog.Logger) Option {
	return func(j *Job) { j.log = log }
}

// Job drives one compilation unit through the pipeline. It has no internal
// locking: a single writer owns it at any time, and ownership of the Parse
// step may be handed to a background goroutine and back.
type Job struct {
	id         id.JobID
	rt         *runtime.Runtime
	fn         *runtime.Function
	stackLimit int
	log        *slog.Logger

	status     Status
	canParseBG bool

	// Captured by PrepareToParse for the (possibly background) parse.
	src   string
	chain *ast.ScopeChain

	parsed   *parser.Result
	artifact *compiler.Artifact
	failure  *Failure
}

// New creates a job for fn in status initial. stackLimit is the compile
// stack budget in slots; background parsability is fixed here from the
// unit's source resource and never changes over the job's lifetime.
func New(rt *runtime.Runtime, fn *runtime.Function, stackLimit int, opts ...Option) *Job {
	j := &Job{
		id:         id.NewJobID(),
		rt:         rt,
		fn:         fn,
		stackLimit: stackLimit,
		log:        slog.Default(),
		status:     StatusInitial,
		canParseBG: fn.Script.Resource.BackgroundSafe(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// ID returns the job's identity.
func (j *Job) ID() id.JobID { return j.id }

// Status returns the current pipeline status.
func (j *Job) Status() Status { return j.status }

// Function returns the compilation unit the job is compiling.
func (j *Job) Function() *runtime.Function { return j.fn }

// CanParseOnBackgroundThread reports whether Parse may run off the owner
// goroutine. Decided once at construction from the source resource.
func (j *Job) CanParseOnBackgroundThread() bool { return j.canParseBG }

// Failure returns the recorded failure, or nil.
func (j *Job) Failure() *Failure { return j.failure }

// ParseResult returns the parsed representation, or nil.
func (j *Job) ParseResult() *parser.Result { return j.parsed }

// Artifact returns the generated artifact, or nil.
func (j *Job) Artifact() *compiler.Artifact { return j.artifact }

// expect panics unless the job is in want.
func (j *Job) expect(op string, want Status) {
	if j.status != want {
		panic(fmt.Sprintf("tide/job: %s called in status %s, want %s", op, j.status, want))
	}
}

// fail records the failure and drops any intermediate results.
func (j *Job) fail(kind FailureKind, msg string, pos ast.Position) {
	j.failure = &Failure{Kind: kind, Msg: msg, Pos: pos}
	j.parsed = nil
	j.artifact = nil
}

// PrepareToParse captures everything the parse needs: the unit's source
// text and an immutable snapshot of its enclosing scope chain. Owner
// goroutine only; the snapshot is what makes a later background Parse safe.
func (j *Job) PrepareToParse() {
	j.expect("PrepareToParse", StatusInitial)
	j.src = j.fn.Source()
	j.chain = j.fn.ScopeSnapshot()
	j.status = StatusReadyToParse
	j.log.Debug("job ready to parse", "job", j.id, "background_ok", j.canParseBG)
}

// Parse parses the captured source. It may run on a background goroutine
// iff CanParseOnBackgroundThread. Errors are recorded, never raised: the
// job always advances to parsed, and FinalizeParsing reports the outcome.
func (j *Job) Parse() {
	j.expect("Parse", StatusReadyToParse)

	res, err := parser.Parse(j.src, j.chain, j.stackLimit)
	if err != nil {
		switch e := err.(type) {
		case *parser.SyntaxError:
			j.fail(SyntaxError, e.Msg, e.Pos)
		case *parser.DepthError:
			j.fail(StackOverflow, "source too deeply nested to parse", e.Pos)
		default:
			j.fail(InternalError, err.Error(), ast.Position{})
		}
	} else {
		j.parsed = res
	}
	j.status = StatusParsed
}

// FinalizeParsing surfaces the parse outcome on the owner goroutine. A
// recorded parse failure is raised into the runtime as the pending
// exception and fails the job; otherwise the job becomes ready to analyse.
func (j *Job) FinalizeParsing() error {
	j.expect("FinalizeParsing", StatusParsed)

	if j.failure != nil {
		j.raise()
		j.status = StatusFailed
		return j.failure
	}
	j.status = StatusReadyToAnalyse
	return nil
}

// PrepareToCompile runs scope analysis and slot allocation. Unlike Parse
// and Compile it executes on the owner goroutine and raises immediately:
// an oversized unit fails here, before code generation is attempted.
func (j *Job) PrepareToCompile() error {
	j.expect("PrepareToCompile", StatusReadyToAnalyse)

	if err := compiler.Analyze(j.parsed, j.stackLimit); err != nil {
		j.recordCompileError(err)
		j.raise()
		j.status = StatusFailed
		return j.failure
	}
	j.status = StatusReadyToCompile
	return nil
}

// Compile generates bytecode for the analysed unit. Errors are recorded,
// never raised: the job always advances to compiled, and FinalizeCompiling
// reports the outcome.
func (j *Job) Compile() {
	j.expect("Compile", StatusReadyToCompile)

	art, err := compiler.Generate(j.parsed, j.stackLimit)
	if err != nil {
		j.recordCompileError(err)
	} else {
		j.artifact = art
	}
	j.status = StatusCompiled
}

// FinalizeCompiling surfaces the compile outcome on the owner goroutine.
// On success the artifact is installed on the unit's function and the job
// is done; a recorded failure is raised and fails the job.
func (j *Job) FinalizeCompiling() error {
	j.expect("FinalizeCompiling", StatusCompiled)

	if j.failure != nil {
		j.raise()
		j.status = StatusFailed
		return j.failure
	}
	j.fn.Install(j.artifact)
	j.status = StatusDone
	j.log.Debug("job done", "job", j.id, "fn", j.fn.ID)
	return nil
}

// Reset returns the job to initial from any status, dropping captured
// source, intermediate results and the recorded failure. It does not touch
// the runtime's pending exception.
func (j *Job) Reset() {
	j.src = ""
	j.chain = nil
	j.parsed = nil
	j.artifact = nil
	j.failure = nil
	j.status = StatusInitial
}

func (j *Job) recordCompileError(err error) {
	if ov, ok := err.(*compiler.OverflowError); ok {
		j.fail(StackOverflow, "unit exceeds the compile stack budget", ov.Pos)
		return
	}
	j.fail(InternalError, err.Error(), ast.Position{})
}

func (j *Job) raise() {
	j.rt.Raise(&runtime.Exception{Msg: j.failure.Msg, Pos: j.failure.Pos})
	j.log.Debug("job failed", "job", j.id, "kind", j.failure.Kind, "msg", j.failure.Msg)
}
