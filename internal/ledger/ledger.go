// Package ledger implements the batch record file format: one repair record
// per line as comma-separated fields, optionally suffixed with a terminal
// status. The file is the single durable representation of a batch; every
// component that touches disk goes through this package so that a crash or a
// retry can never lose or duplicate a record.
//
// Line format:
//
//	<field0>,<field1>,...,<field12>[,...][ // <status>]
//
// A status of "success" marks the record done; any other status is a failure
// category carried over from a previous attempt.
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Separator splits a line's record content from its status suffix. The
// spaces are significant: a bare "//" inside a remarks field must not be
// mistaken for a status marker.
const Separator = " // "

// StatusSuccess marks a record as submitted. Retry runs skip these lines.
const StatusSuccess = "success"

// Line is one row of a ledger file split on the status separator.
type Line struct {
	Raw    string // record content without the status suffix
	Status string // empty means the record has not been attempted yet
}

// Split breaks a raw ledger line into record content and status. The line is
// split once on the first separator occurrence; lines without a separator
// have an empty status.
func Split(line string) Line {
	raw, status, found := strings.Cut(line, Separator)
	if !found {
		return Line{Raw: strings.TrimSpace(line)}
	}
	return Line{Raw: strings.TrimSpace(raw), Status: strings.TrimSpace(status)}
}

// String renders the line in persisted form.
func (l Line) String() string {
	if l.Status == "" {
		return l.Raw
	}
	return l.Raw + Separator + l.Status
}

// Read loads a ledger file, trimming whitespace and dropping blank lines.
// The returned lines keep any status suffix; callers strip it as needed.
func Read(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return lines, nil
}

// FilterFailed keeps only the records that still need processing: lines whose
// status is anything other than "success", with the suffix stripped. Lines
// without a status are kept as-is. Applying the filter to an already filtered
// set returns the same set, which makes retry idempotent.
func FilterFailed(lines []string) []string {
	var filtered []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		l := Split(line)
		if l.Status == StatusSuccess {
			continue
		}
		filtered = append(filtered, l.Raw)
	}
	return filtered
}
