package measurement

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/scovctl/internal/domain"
)

// Collection is everything read from one data directory.
type Collection struct {
	DataDir string
	IDs     *domain.CoverageSet
	// Files lists the measurement files read, sorted.
	Files      []string
	Lines      int
	Skipped    int
	Duplicates int
}

// Collector reads measurement files back into coverage sets. The zero
// value is ready to use.
type Collector struct {
	Logger *slog.Logger
	// Parallelism bounds CollectAll. Zero means GOMAXPROCS.
	Parallelism int
}

// Collect returns the distinct statement ids recorded in dataDir. A
// missing or empty directory yields an empty set.
func (c Collector) Collect(dataDir string) (*domain.CoverageSet, error) {
	col, err := c.CollectStats(dataDir)
	if err != nil {
		return nil, err
	}
	return col.IDs, nil
}

// CollectStats is Collect plus file and line counters.
func (c Collector) CollectStats(dataDir string) (Collection, error) {
	col := Collection{DataDir: dataDir, IDs: domain.NewCoverageSet()}

	files, err := MeasurementFiles(dataDir)
	if err != nil {
		return Collection{}, err
	}
	for _, path := range files {
		read, err := collectFile(path, &col)
		if err != nil {
			return Collection{}, err
		}
		if read {
			col.Files = append(col.Files, path)
		}
	}

	c.logger().Debug("collected measurements",
		slog.String("dataDir", dataDir),
		slog.Int("files", len(col.Files)),
		slog.Int("statements", col.IDs.Len()),
		slog.Int("skipped", col.Skipped),
		slog.Int("duplicates", col.Duplicates))
	return col, nil
}

// CollectAll collects several data directories concurrently. Results are
// in the order of dirs. The first error cancels the remaining work.
func (c Collector) CollectAll(ctx context.Context, dirs []string) ([]Collection, error) {
	results := make([]Collection, len(dirs))
	g, ctx := errgroup.WithContext(ctx)
	limit := c.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)

	for i, dir := range dirs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			col, err := c.CollectStats(dir)
			if err != nil {
				return err
			}
			results[i] = col
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c Collector) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// MeasurementFiles lists the measurement files directly inside dataDir,
// sorted by name. A missing directory yields no files.
func MeasurementFiles(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir %s: %w", dataDir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := ParseFileName(e.Name()); !ok {
			continue
		}
		files = append(files, filepath.Join(dataDir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

const maxLineLength = 64

// collectFile adds the ids in one file to col. It reports false when the
// file vanished before it could be opened.
func collectFile(path string, col *Collection) (bool, error) {
	// #nosec G304 -- path was listed from the data directory
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open measurement file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 4096)
	for {
		line, err := r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			// Far longer than any id: drain the rest of the line and skip it.
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = r.ReadSlice('\n')
			}
			col.Lines++
			col.Skipped++
		} else if len(line) > 0 {
			col.Lines++
			if len(line) > maxLineLength {
				col.Skipped++
			} else if id, outcome := parseLine(line); outcome == lineSkipped {
				col.Skipped++
			} else if !col.IDs.Add(id) {
				col.Duplicates++
			}
		}

		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, fmt.Errorf("read measurement file %s: %w", path, err)
		}
	}
}
