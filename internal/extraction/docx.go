package extraction

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// readDOCX returns one line per non-empty paragraph of the main document
func readDOCX(raw []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	return paragraphsFromXML(doc.Editable().GetContent())
}

// paragraphsFromXML walks WordprocessingML, collecting w:t runs per w:p.
// Tabs and breaks inside a paragraph become spaces.
func paragraphsFromXML(content string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(content))

	var (
		out       strings.Builder
		paragraph strings.Builder
		inText    bool
	)
	flush := func() {
		if line := strings.TrimSpace(paragraph.String()); line != "" {
			out.WriteString(line)
			out.WriteByte('\n')
		}
		paragraph.Reset()
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse docx body: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab", "br":
				paragraph.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}
	flush()

	return out.String(), nil
}
