// Package ext defines the extension system for the Tide compile engine.
//
// Extensions are notified of pipeline lifecycle events and can react to
// them — recording metrics, emitting webhooks, writing audit logs, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobCompiled(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    log.Printf("job %s compiled in %s", j.ID(), elapsed)
//	    return nil
//	}
//
// # Pipeline Lifecycle Hooks
//
//   - [JobQueued] — compile job was accepted by the engine
//   - [ParseStarted] — parse step began (possibly on a background goroutine)
//   - [ParseFinished] — parse step ended; outcome surfaces at finalisation
//   - [JobCompiled] — job reached done and the artifact was installed
//   - [JobFailed] — job failed with no retries remaining
//   - [JobRetrying] — job hit an internal error and will be retried
//   - [CacheHit] — unit was satisfied from the compilation cache
//   - [Shutdown] — the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
