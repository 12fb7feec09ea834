// Package measurement records and collects statement coverage measurements.
//
// Instrumented code calls Record (or the package-level Invoked) each time a
// tracked statement executes. A write borrows an idle Worker from the
// Recorder's pool, and every worker appends to its own file per data
// directory:
//
//	<dataDir>/scoverage.measurements.<workerID>
//
// Each line of a measurement file is one decimal statement id. Within one
// Recorder an id is written at most once per data directory; across
// recorder lifetimes (process restarts) duplicates are expected and the
// Collector collapses them.
//
// A new worker takes the id of the goroutine that created it (bumped to
// the next free id on collision), so ids are only unique within a process.
// Workers are reused, so their count follows peak write concurrency.
// Running several processes against the same data directory at the same
// time is not supported: their workers may pick the same file name and
// interleave writes. Nothing detects this.
//
// A process crash in the middle of a write can leave a truncated final
// line. The Collector skips lines that do not parse, so such a fragment
// costs at most one statement. Writes are never retried.
package measurement
