package measurement

import (
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/petermattis/goid"
)

// DefaultFileMode is the permission used when creating measurement files.
const DefaultFileMode os.FileMode = 0o644

// Recorder deduplicates and persists statement executions. It is safe for
// concurrent use by any number of goroutines. A write borrows an idle
// Worker for its duration, so the number of workers (and open files) is
// bounded by peak write concurrency rather than by goroutines created.
type Recorder struct {
	seen seenSet

	mu   sync.Mutex
	idle []*Worker
	all  map[int64]*Worker

	workerID func() int64
	fsync    bool
	perm     os.FileMode
	logger   *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithSync makes every record fsync its file after the write. This
// survives power loss, not just process crashes, at a large cost per
// first execution of a statement.
func WithSync(enabled bool) Option {
	return func(r *Recorder) {
		r.fsync = enabled
	}
}

// WithFileMode sets the permission used when creating measurement files.
func WithFileMode(perm os.FileMode) Option {
	return func(r *Recorder) {
		r.perm = perm
	}
}

// WithLogger sets the logger. Recording logs at debug level only, plus a
// warning when a write fails.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithWorkerID replaces the goroutine id as the source of new worker ids.
// It is consulted only when a worker is created. Negative values are
// clamped to 0, and a value already in use is bumped to the next free id,
// so every worker writes a file the collector picks up.
func WithWorkerID(fn func() int64) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.workerID = fn
		}
	}
}

// New creates a Recorder.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		all:      make(map[int64]*Worker),
		workerID: goid.Get,
		perm:     DefaultFileMode,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record notes that statement id executed, writing it to the calling
// goroutine's measurement file in dataDir unless this Recorder already
// wrote it there. dataDir must exist.
//
// On error the id is not marked as written, so a later call retries.
func (r *Recorder) Record(id StatementID, dataDir string) error {
	if r.seen.contains(dataDir, id) {
		return nil
	}
	w := r.Acquire()
	defer r.Release(w)
	return w.record(id, dataDir)
}

// Seen reports whether id has been written to dataDir by this Recorder.
func (r *Recorder) Seen(id StatementID, dataDir string) bool {
	return r.seen.contains(dataDir, id)
}

// Recorded returns the number of (dataDir, id) pairs written so far.
func (r *Recorder) Recorded() int {
	return r.seen.len()
}

// Acquire borrows a worker for exclusive use by the calling goroutine,
// reusing the most recently released one when available. Callers that
// record many ids in a row may hold it and call Worker.Record directly;
// it must be handed back with Release.
func (r *Recorder) Acquire() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.idle); n > 0 {
		w := r.idle[n-1]
		r.idle[n-1] = nil
		r.idle = r.idle[:n-1]
		return w
	}
	id := max(r.workerID(), 0)
	for r.all[id] != nil {
		id++
	}
	w := newWorker(r, id)
	r.all[id] = w
	return w
}

// Release returns a worker obtained from Acquire to the idle pool. Its
// files stay open for the next borrower.
func (r *Recorder) Release(w *Worker) {
	if w == nil || w.rec != r {
		return
	}
	r.mu.Lock()
	r.idle = append(r.idle, w)
	r.mu.Unlock()
}

// Workers returns the number of workers created so far.
func (r *Recorder) Workers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.all)
}

// Close closes the files of every worker and empties the pool. It must
// not run concurrently with Record or while a worker is borrowed. The
// seen set is kept, so ids already written stay deduplicated.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for id, w := range r.all {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.all, id)
	}
	clear(r.idle)
	r.idle = r.idle[:0]
	return errors.Join(errs...)
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// Default returns the process-wide Recorder, creating it on first use.
func Default() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = New()
	})
	return defaultRecorder
}

// Invoked records id in dataDir using the default Recorder. It is the
// entry point generated instrumentation calls.
func Invoked(id StatementID, dataDir string) error {
	return Default().Record(id, dataDir)
}
