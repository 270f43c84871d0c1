package batch

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tingwen/kplus-repair-uploader/internal/ledger"
)

// CaptureRecord is one verified repair entry ready to be written to a batch
// file.
type CaptureRecord struct {
	ProductFID        string
	BoardFIDs         []string
	FailureCausedType string

	RepairResult       string
	Remarks            string
	ComponentLocation  string
	RepairComponentA5E string
	Type               string
	FailureKind        string
	FCode              string
	RepairAction       string
	Engineer           string
}

// ComposeLine renders the record in the 13-field batch format the uploader
// reads back. Board FIDs are space-joined into the second field; the
// engineer field carries no leading space, matching the historical files.
func ComposeLine(rec CaptureRecord) string {
	fields := []string{
		rec.ProductFID,
		strings.Join(rec.BoardFIDs, " "),
		rec.FailureCausedType,
		rec.FailureCausedType,
		rec.RepairResult,
		rec.Remarks,
		rec.ComponentLocation,
		rec.RepairComponentA5E,
		rec.Type,
		rec.FailureKind,
		rec.FCode,
		rec.RepairAction,
	}
	return strings.Join(fields, ", ") + "," + rec.Engineer
}

// Builder appends capture records to a timestamped batch file in dir. The
// file is named on first use and follows any fallback relocation done by
// the ledger writer.
type Builder struct {
	dir      string
	filePath string

	now func() time.Time
}

func NewBuilder(dir string) *Builder {
	return &Builder{dir: dir, now: time.Now}
}

// File returns the batch file path, or "" before the first record.
func (b *Builder) File() string { return b.filePath }

// Add appends one record and returns the path it was written to.
func (b *Builder) Add(rec CaptureRecord) (string, error) {
	if b.filePath == "" {
		b.filePath = filepath.Join(b.dir, batchFileName(b.now()))
	}
	written, err := ledger.Append(b.filePath, ComposeLine(rec))
	if err != nil {
		return "", fmt.Errorf("append record: %w", err)
	}
	b.filePath = written
	return written, nil
}

func batchFileName(t time.Time) string {
	return fmt.Sprintf("repair_batch_%s_%03d.txt",
		t.Format("20060102_150405"), t.Nanosecond()/int(time.Millisecond))
}
