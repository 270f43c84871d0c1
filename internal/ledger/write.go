package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// Result is the per-record outcome of a batch run, in input order. Err holds
// the categorized failure when Success is false.
type Result struct {
	OriginalLine string
	Success      bool
	Err          string
	ProductFID   string
}

// Output file name markers. A finished batch is renamed so the aggregate
// outcome is visible in a directory listing without opening the file.
const (
	suffixFail = "_fail"
	suffixDone = "_done"
)

// OutputPath derives the rewrite target for a ledger: the base name with any
// previous _fail/_done marker stripped, then _fail.txt if the batch had any
// failure, else _done.txt. Input files that already carry a marker (a retried
// _fail file, for example) re-derive cleanly instead of stacking suffixes.
func OutputPath(path string, hasFailure bool) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	base = strings.TrimSuffix(base, suffixFail)
	base = strings.TrimSuffix(base, suffixDone)
	if hasFailure {
		return base + suffixFail + ".txt"
	}
	return base + suffixDone + ".txt"
}

// WriteResults rewrites a finished batch: every result becomes one line
// tagged with its terminal status, and the file is renamed by aggregate
// outcome. The previous file is deleted only after the new one is confirmed
// written, and never when the names coincide. An empty result set is a no-op.
// Returns the path actually written, or "" when nothing was written.
func WriteResults(path string, results []Result) (string, error) {
	if len(results) == 0 {
		return "", nil
	}

	var sb strings.Builder
	hasFailure := false
	for _, r := range results {
		status := StatusSuccess
		if !r.Success {
			hasFailure = true
			status = r.Err
			if status == "" || status == "fail" {
				status = "提交失败"
			}
		}
		sb.WriteString(Line{Raw: r.OriginalLine, Status: status}.String())
		sb.WriteByte('\n')
	}

	outPath := OutputPath(path, hasFailure)
	written, err := writeWithFallback(outPath, sb.String())
	if err != nil {
		return "", err
	}

	if written != path {
		if _, statErr := os.Stat(path); statErr == nil {
			if rmErr := os.Remove(path); rmErr != nil {
				log.Warn().Err(rmErr).Str("path", path).Msg("could not remove superseded ledger")
			}
		}
	}
	return written, nil
}

// Append adds one record line to a ledger file, creating the parent
// directory when needed. It uses the same fallback chain as WriteResults and
// returns the path actually written, which may differ from the requested one
// when only the temp-directory fallback succeeded.
func Append(path, line string) (string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("could not create record directory")
		}
	}

	data := line + "\n"
	if err := appendFile(path, []byte(data)); err == nil {
		return path, nil
	} else {
		log.Warn().Err(err).Str("path", path).Msg("utf-8 append failed, trying gbk")
	}

	if gbk, encErr := encodeGBK(data); encErr == nil {
		if err := appendFile(path, gbk); err == nil {
			return path, nil
		}
	}

	tmp := tempBackupPath()
	if err := appendFile(tmp, []byte(data)); err != nil {
		return "", fmt.Errorf("append ledger %s: all write targets failed: %w", path, err)
	}
	log.Warn().Str("path", tmp).Msg("record appended to temp backup file")
	return tmp, nil
}

// DeleteRecord rewrites the ledger dropping every line whose first
// comma-separated field equals productFID exactly; any status suffix is
// ignored for matching. A line for "ABC1234" survives a delete of "ABC123".
// The file is rewritten only when at least one line was dropped. Returns the
// number of lines removed.
//
// Callers must not invoke this while a worker for the same file is running:
// the worker rewrites the whole file on completion and would resurrect the
// deleted line.
func DeleteRecord(path, productFID string) (int, error) {
	lines, err := Read(path)
	if err != nil {
		return 0, err
	}

	var kept []string
	deleted := 0
	for _, line := range lines {
		content := Split(line).Raw
		if FirstField(content) == productFID || strings.HasPrefix(content, productFID+",") {
			deleted++
			continue
		}
		kept = append(kept, line)
	}

	if deleted == 0 {
		return 0, nil
	}

	var sb strings.Builder
	for _, line := range kept {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return 0, fmt.Errorf("rewrite ledger: %w", err)
	}
	return deleted, nil
}

// writeWithFallback writes a whole file with the legacy fallback chain:
// UTF-8, then GBK (the encoding of the deployment's older shared drives),
// then a fresh file in the temp directory as a last resort. Returns the path
// actually written.
func writeWithFallback(path, data string) (string, error) {
	if err := os.WriteFile(path, []byte(data), 0o644); err == nil {
		return path, nil
	} else {
		log.Warn().Err(err).Str("path", path).Msg("utf-8 write failed, trying gbk")
	}

	if gbk, encErr := encodeGBK(data); encErr == nil {
		if err := os.WriteFile(path, gbk, 0o644); err == nil {
			return path, nil
		}
	}

	tmp := tempBackupPath()
	if err := os.WriteFile(tmp, []byte(data), 0o644); err != nil {
		return "", fmt.Errorf("write ledger %s: all write targets failed: %w", path, err)
	}
	log.Warn().Str("path", tmp).Msg("ledger written to temp backup file")
	return tmp, nil
}

func encodeGBK(s string) ([]byte, error) {
	enc := encoding.ReplaceUnsupported(simplifiedchinese.GBK.NewEncoder())
	out, _, err := transform.Bytes(enc, []byte(s))
	return out, err
}

func tempBackupPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("repair_backup_%d.txt", time.Now().Unix()))
}

func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
