package extraction

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// readPDF extracts page text. Within a page the text rows are joined with a
// space; every page ends with a newline.
func readPDF(raw []byte) (text string, err error) {
	// The parser panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("corrupt pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("failed to read pdf page %d: %w", i, err)
		}

		units := make([]string, 0, len(rows))
		for _, row := range rows {
			var line strings.Builder
			for _, word := range row.Content {
				line.WriteString(word.S)
			}
			if s := strings.TrimSpace(line.String()); s != "" {
				units = append(units, s)
			}
		}
		pages = append(pages, strings.Join(units, " "))
	}

	return joinPages(pages), nil
}

// joinPages terminates every page's text with a newline
func joinPages(pages []string) string {
	var b strings.Builder
	for _, page := range pages {
		b.WriteString(page)
		b.WriteByte('\n')
	}
	return b.String()
}
