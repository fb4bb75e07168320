package extractor

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	// minPrimaryContent is the threshold under which the primary extraction
	// result is considered too thin and the fallback strategy kicks in.
	minPrimaryContent = 100

	// minFallbackContent is the threshold under which even the fallback
	// result is reported as low content.
	minFallbackContent = 50

	minPrintableRun = 4
)

var (
	// ErrUnsupportedFormat rejects a file before any of its bytes are read.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrLowContent is recoverable: it accompanies whatever text could be
	// salvaged and signals the caller to synthesize a placeholder.
	ErrLowContent = errors.New("extracted content below minimum threshold")
)

// Extract converts a binary document into plain text, dispatching on the
// filename extension. It returns ErrUnsupportedFormat for unknown extensions,
// ErrLowContent (with the best text found so far) when both the primary and
// fallback strategies came up nearly empty, and a fatal error for files that
// cannot be read at all.
func Extract(src Source, filename string) (string, error) {
	var primary, fallback func([]byte) (string, error)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		primary, fallback = extractPDF, extractPDFRaw
	case ".doc", ".docx":
		primary, fallback = extractDocx, extractDocxRaw
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	content, err := src.Read()
	if err != nil {
		return "", fmt.Errorf("read source %s: %w", filename, err)
	}

	text, err := primary(content)
	if err == nil && len(strings.TrimSpace(text)) >= minPrimaryContent {
		return text, nil
	}
	if err != nil {
		log.Printf("⚠️ Primary extraction failed for %s: %v", filename, err)
	} else {
		log.Printf("⚠️ Primary extraction yielded only %d chars for %s, trying fallback", len(strings.TrimSpace(text)), filename)
	}

	if resetErr := src.Reset(); resetErr != nil {
		return "", fmt.Errorf("reset source %s: %w", filename, resetErr)
	}

	alt, altErr := fallback(content)
	if altErr == nil && len(strings.TrimSpace(alt)) >= minFallbackContent {
		log.Printf("✅ Fallback extraction recovered %d chars for %s", len(strings.TrimSpace(alt)), filename)
		return alt, nil
	}

	if err != nil && altErr != nil {
		// Neither parser could open the file. Scan the raw bytes for runs of
		// printable characters before giving up; this is what turns an HTML
		// error page saved under a .pdf name into usable text.
		if scanned := scanPrintable(content); len(strings.TrimSpace(scanned)) >= minFallbackContent {
			log.Printf("⚠️ Using printable-scan extraction for %s", filename)
			return scanned, nil
		}
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}

	best := text
	if len(strings.TrimSpace(alt)) > len(strings.TrimSpace(best)) {
		best = alt
	}
	return best, fmt.Errorf("%s: %w", filename, ErrLowContent)
}

// scanPrintable pulls runs of printable ASCII out of arbitrary bytes. It is
// the strategy of last resort for documents no parser could open.
func scanPrintable(content []byte) string {
	var out strings.Builder
	var run []byte

	flush := func() {
		if len(run) >= minPrintableRun {
			out.Write(run)
			out.WriteByte(' ')
		}
		run = run[:0]
	}

	for _, b := range content {
		if b >= 0x20 && b < 0x7f || b == '\t' {
			run = append(run, b)
			continue
		}
		flush()
	}
	flush()

	return strings.TrimSpace(out.String())
}

func isPrintableText(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
