package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const defaultHeading = "Document Content"

type docxBlock struct {
	heading bool
	text    string
	table   [][]string
}

// extractDocx walks word/document.xml in document order, grouping consecutive
// non-heading paragraphs under the most recently seen heading and serializing
// tables as pipe-delimited rows.
func extractDocx(content []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	body, err := readZipFile(archive, "word/document.xml")
	if err != nil {
		return "", err
	}

	blocks, err := parseDocxBody(body)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	if meta := docxMetadata(archive); meta != "" {
		out.WriteString(meta)
		out.WriteString("\n")
	}

	heading := ""
	for _, block := range blocks {
		switch {
		case block.heading:
			heading = block.text
			out.WriteString("\n## " + block.text + "\n")
		case len(block.table) > 0:
			for _, row := range block.table {
				out.WriteString("| " + strings.Join(row, " | ") + " |\n")
			}
		default:
			if heading == "" {
				heading = defaultHeading
				out.WriteString("\n## " + heading + "\n")
			}
			out.WriteString(block.text + "\n")
		}
	}

	return out.String(), nil
}

// extractDocxRaw concatenates every text run in the document, ignoring
// paragraph and table structure entirely.
func extractDocxRaw(content []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	body, err := readZipFile(archive, "word/document.xml")
	if err != nil {
		return "", err
	}

	decoder := xml.NewDecoder(bytes.NewReader(body))
	var out strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if el.Name.Local == "t" {
				inText = false
				out.WriteString(" ")
			}
		case xml.CharData:
			if inText {
				out.Write(el)
			}
		}
	}
	return out.String(), nil
}

func parseDocxBody(body []byte) ([]docxBlock, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))

	var (
		blocks     []docxBlock
		para       strings.Builder
		cell       strings.Builder
		row        []string
		table      [][]string
		inText     bool
		inPara     bool
		tableDepth int
		isHeading  bool
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "tbl":
				tableDepth++
				if tableDepth == 1 {
					table = nil
				}
			case "tr":
				if tableDepth == 1 {
					row = nil
				}
			case "tc":
				if tableDepth == 1 {
					cell.Reset()
				}
			case "p":
				if tableDepth == 0 {
					inPara = true
					isHeading = false
					para.Reset()
				}
			case "pStyle":
				if inPara && tableDepth == 0 {
					for _, attr := range el.Attr {
						if attr.Name.Local != "val" {
							continue
						}
						style := strings.ToLower(attr.Value)
						if strings.Contains(style, "heading") || strings.Contains(style, "title") {
							isHeading = true
						}
					}
				}
			case "t":
				inText = true
			case "br":
				if tableDepth == 0 && inPara {
					para.WriteString("\n")
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				if tableDepth == 0 && inPara {
					inPara = false
					text := strings.TrimSpace(para.String())
					if text != "" {
						blocks = append(blocks, docxBlock{heading: isHeading, text: text})
					}
				} else if tableDepth == 1 {
					cell.WriteString(" ")
				}
			case "tc":
				if tableDepth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
				}
			case "tr":
				if tableDepth == 1 && len(row) > 0 {
					table = append(table, row)
				}
			case "tbl":
				tableDepth--
				if tableDepth == 0 && len(table) > 0 {
					blocks = append(blocks, docxBlock{table: table})
				}
			}
		case xml.CharData:
			if !inText {
				continue
			}
			if tableDepth > 0 {
				cell.Write(el)
			} else if inPara {
				para.Write(el)
			}
		}
	}

	return blocks, nil
}

type docxCoreProps struct {
	Title    string `xml:"title"`
	Creator  string `xml:"creator"`
	Subject  string `xml:"subject"`
	Keywords string `xml:"keywords"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
}

func docxMetadata(archive *zip.Reader) string {
	body, err := readZipFile(archive, "docProps/core.xml")
	if err != nil {
		return ""
	}

	var props docxCoreProps
	if err := xml.Unmarshal(body, &props); err != nil {
		return ""
	}

	var lines []string
	for _, field := range []struct{ label, value string }{
		{"Title", props.Title},
		{"Author", props.Creator},
		{"Subject", props.Subject},
		{"Keywords", props.Keywords},
		{"Created", props.Created},
		{"Modified", props.Modified},
	} {
		if strings.TrimSpace(field.value) != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", field.label, strings.TrimSpace(field.value)))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Document Metadata:\n" + strings.Join(lines, "\n") + "\n"
}

func readZipFile(archive *zip.Reader, name string) ([]byte, error) {
	for _, f := range archive.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", name)
}
