// Package tide provides the compilation pipeline for the Tide scripting
// language: a phase-based compile job that carries one function from source
// text through parsing and bytecode generation, designed so the expensive
// parse step can run off the thread that owns the runtime heap.
//
// Tide is designed as a library, not a service. Embed a runtime, hand the
// engine a function to compile, and the engine sequences the job phases —
// parsing on a background worker when the source permits it, every
// heap-touching step on the single main loop that owns the runtime.
//
// # Quick Start
//
//	rt := runtime.New(nil)
//	script := rt.NewScript(source.FromText(src))
//	fn := rt.NewFunction(script, "f", 0, 0, nil)
//
//	eng := engine.New(rt, engine.WithConfig(tide.DefaultConfig()))
//	eng.Start(ctx)
//	defer eng.Stop(ctx)
//
//	task, _ := eng.Enqueue(ctx, fn)
//	artifact, err := task.Wait(ctx)
//
// # Architecture
//
// The job package is the heart: a strict state machine
// (Initial → ReadyToParse → Parsed → ReadyToAnalyse → ReadyToCompile →
// Compiled → Done, with Failed reachable from the finalize steps) whose
// Prepare/Finalize operations bracket the two algorithmic steps. The
// bracketing is the point: Parse touches only the source resource and an
// already-snapshotted scope chain, so it may leave the main thread; every
// other step may mutate the heap and may not.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package tide
