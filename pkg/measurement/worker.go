package measurement

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Worker owns a set of open measurement files, one per data directory.
// A Worker is NOT safe for concurrent use: it belongs to one goroutine at
// a time, between Recorder.Acquire and Recorder.Release.
type Worker struct {
	id    int64
	rec   *Recorder
	files map[string]*os.File
	buf   []byte
}

func newWorker(r *Recorder, id int64) *Worker {
	return &Worker{
		id:    id,
		rec:   r,
		files: make(map[string]*os.File),
		buf:   make([]byte, 0, 24),
	}
}

// ID returns the worker id used in measurement file names.
func (w *Worker) ID() int64 {
	return w.id
}

// Path returns the measurement file this worker writes in dataDir.
func (w *Worker) Path(dataDir string) string {
	return filepath.Join(dataDir, FileName(w.id))
}

// Record behaves like Recorder.Record but writes through this worker.
func (w *Worker) Record(id StatementID, dataDir string) error {
	if w.rec.seen.contains(dataDir, id) {
		return nil
	}
	return w.record(id, dataDir)
}

func (w *Worker) record(id StatementID, dataDir string) error {
	f, err := w.file(dataDir)
	if err != nil {
		return fmt.Errorf("record statement %d in %s: %w", id, dataDir, err)
	}

	w.buf = appendRecord(w.buf[:0], id)
	if _, err := f.Write(w.buf); err != nil {
		w.fail(dataDir, id, err)
		return fmt.Errorf("record statement %d in %s: %w", id, dataDir, err)
	}
	if w.rec.fsync {
		if err := f.Sync(); err != nil {
			w.fail(dataDir, id, err)
			return fmt.Errorf("record statement %d in %s: sync: %w", id, dataDir, err)
		}
	}

	w.rec.seen.add(dataDir, id)
	return nil
}

// file returns the open handle for dataDir. The directory is never
// created here: a missing directory is the caller's error to see.
func (w *Worker) file(dataDir string) (*os.File, error) {
	if f, ok := w.files[dataDir]; ok {
		return f, nil
	}
	path := w.Path(dataDir)
	// #nosec G304 -- dataDir comes from the instrumentation settings
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, w.rec.perm)
	if err != nil {
		return nil, err
	}
	w.files[dataDir] = f
	w.rec.logger.Debug("opened measurement file",
		slog.Int64("worker", w.id),
		slog.String("path", path))
	return f, nil
}

// fail drops the handle after a failed write so the next attempt reopens
// the file.
func (w *Worker) fail(dataDir string, id StatementID, cause error) {
	w.rec.logger.Warn("measurement write failed",
		slog.Int64("worker", w.id),
		slog.String("dataDir", dataDir),
		slog.Int("statement", int(id)),
		slog.Any("error", cause))
	if f, ok := w.files[dataDir]; ok {
		_ = f.Close()
		delete(w.files, dataDir)
	}
}

// Close closes all files of this worker.
func (w *Worker) Close() error {
	var errs []error
	for dir, f := range w.files {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close measurement file in %s: %w", dir, err))
		}
		delete(w.files, dir)
	}
	return errors.Join(errs...)
}
