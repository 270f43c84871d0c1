// Package batch builds repair batch files from verified capture input.
package batch

import (
	"context"
	"strings"
)

// TextSource produces a comma-separated SNR token string for the boards
// currently on the bench. The OCR capture tool is one implementation;
// tests and manual entry are others.
type TextSource interface {
	Text(ctx context.Context) (string, error)
}

// VerifySNR reports whether every non-empty board FID appears among the
// comma-separated SNR tokens. No boards or a blank SNR string is a FAIL.
func VerifySNR(boardFIDs []string, snrText string) bool {
	var fids []string
	for _, fid := range boardFIDs {
		if fid = strings.TrimSpace(fid); fid != "" {
			fids = append(fids, fid)
		}
	}
	snrText = strings.TrimSpace(snrText)
	if len(fids) == 0 || snrText == "" {
		return false
	}

	tokens := make(map[string]bool)
	for _, field := range strings.Split(snrText, ",") {
		tokens[strings.TrimSpace(field)] = true
	}
	for _, fid := range fids {
		if !tokens[fid] {
			return false
		}
	}
	return true
}
