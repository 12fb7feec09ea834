package measurement

import (
	"strconv"
	"strings"

	"github.com/felixgeelhaar/scovctl/internal/domain"
)

// StatementID identifies one instrumented code location.
type StatementID = domain.StatementID

// FilePrefix starts the name of every measurement file.
const FilePrefix = "scoverage.measurements."

// FileName returns the measurement file name for a worker.
func FileName(workerID int64) string {
	return FilePrefix + strconv.FormatInt(workerID, 10)
}

// ParseFileName extracts the worker id from a measurement file name.
// ok is false for names that do not follow the convention.
func ParseFileName(name string) (workerID int64, ok bool) {
	suffix, found := strings.CutPrefix(name, FilePrefix)
	if !found || suffix == "" {
		return 0, false
	}
	for i := 0; i < len(suffix); i++ {
		if suffix[i] < '0' || suffix[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// appendRecord appends the on-disk form of id to buf.
func appendRecord(buf []byte, id StatementID) []byte {
	buf = strconv.AppendInt(buf, int64(id), 10)
	return append(buf, '\n')
}

type lineOutcome uint8

const (
	lineOK lineOutcome = iota
	lineSkipped
)

const (
	maxStatementID = int64(^uint(0) >> 1)
	minStatementID = -maxStatementID - 1
)

// parseLine decodes one measurement line without allocating. A trailing
// "\n" or "\r\n" is ignored. Anything else that is not a complete decimal
// integer is skipped.
func parseLine(line []byte) (StatementID, lineOutcome) {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	if len(line) == 0 {
		return 0, lineSkipped
	}

	neg := false
	if line[0] == '-' {
		neg = true
		line = line[1:]
		if len(line) == 0 {
			return 0, lineSkipped
		}
	}

	// Accumulate as a negative number so minStatementID fits.
	var v int64
	for _, c := range line {
		if c < '0' || c > '9' {
			return 0, lineSkipped
		}
		d := int64(c - '0')
		if v < (minStatementID+d)/10 {
			return 0, lineSkipped
		}
		v = v*10 - d
	}
	if !neg {
		if v == minStatementID {
			return 0, lineSkipped
		}
		v = -v
	}
	return StatementID(v), lineOK
}
