package extractor

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF reads page text in page order, prepending a metadata block and
// a table-of-contents block when the document carries them.
func extractPDF(content []byte) (text string, err error) {
	defer func() {
		// The pdf parser panics on malformed cross-reference tables.
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var out strings.Builder
	if meta := pdfMetadata(reader); meta != "" {
		out.WriteString(meta)
		out.WriteString("\n")
	}
	if toc := pdfOutline(reader); toc != "" {
		out.WriteString(toc)
		out.WriteString("\n")
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		out.WriteString(pageText)
		out.WriteString("\n")
	}

	return out.String(), nil
}

// extractPDFRaw streams the whole content layer without per-page font
// resolution, which recovers text from documents with broken page trees.
func extractPDFRaw(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf content: %w", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf content: %w", err)
	}
	return string(raw), nil
}

func pdfMetadata(reader *pdf.Reader) string {
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}

	var lines []string
	for _, key := range []string{"Title", "Author", "Subject", "Keywords", "CreationDate", "ModDate"} {
		v := info.Key(key)
		if v.Kind() != pdf.String {
			continue
		}
		s := strings.TrimSpace(v.RawString())
		if s == "" || !isPrintableText(s) {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", key, s))
	}
	if len(lines) == 0 {
		return ""
	}
	return "Document Metadata:\n" + strings.Join(lines, "\n") + "\n"
}

func pdfOutline(reader *pdf.Reader) string {
	outline := reader.Outline()
	if len(outline.Child) == 0 {
		return ""
	}
	var lines []string
	appendOutline(&lines, outline.Child, 0)
	if len(lines) == 0 {
		return ""
	}
	return "Table of Contents:\n" + strings.Join(lines, "\n") + "\n"
}

func appendOutline(lines *[]string, entries []pdf.Outline, depth int) {
	for _, entry := range entries {
		title := strings.TrimSpace(entry.Title)
		if title != "" {
			*lines = append(*lines, strings.Repeat("  ", depth)+title)
		}
		appendOutline(lines, entry.Child, depth+1)
	}
}
