package extraction

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"
)

// Document MIME types the read phase understands
const (
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEDOC      = "application/msword"
	MIMEBinary   = "application/octet-stream"
)

var (
	ErrUnsupportedType = stderrors.New("unsupported document type")
	ErrNoText          = stderrors.New("document contains no extractable text")
	ErrEmptyDocument   = stderrors.New("document is empty")
)

const (
	sniffSampleSize = 512
	binaryThreshold = 0.1
	oleMagic        = "\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1"
	pdfMagic        = "%PDF-"
	zipMagic        = "PK"
)

// ReadText turns a document into plain text. An empty or generic MIME type
// is resolved by sniffing the content.
func ReadText(raw []byte, mimeType string) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmptyDocument
	}

	mediaType := normalizeMIME(mimeType)
	if mediaType == "" || mediaType == MIMEBinary {
		mediaType = Sniff(raw)
	}

	var (
		text string
		err  error
	)
	switch {
	case mediaType == MIMEPDF:
		text, err = readPDF(raw)
	case mediaType == MIMEDOCX:
		text, err = readDOCX(raw)
	case mediaType == MIMEDOC:
		return "", fmt.Errorf("%w: legacy Word (.doc) files are not supported, save as .docx or PDF", ErrUnsupportedType)
	case strings.HasPrefix(mediaType, "text/"):
		text = readPlainText(raw)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, describeType(mediaType))
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Sniff guesses a document's MIME type from its leading bytes
func Sniff(raw []byte) string {
	switch {
	case bytes.HasPrefix(raw, []byte(pdfMagic)):
		return MIMEPDF
	case bytes.HasPrefix(raw, []byte(zipMagic)):
		return MIMEDOCX
	case bytes.HasPrefix(raw, []byte(oleMagic)):
		return MIMEDOC
	case isMostlyPrintable(raw):
		return MIMEText
	default:
		return MIMEBinary
	}
}

func isMostlyPrintable(raw []byte) bool {
	sample := raw[:min(sniffSampleSize, len(raw))]
	nonPrintable := 0
	for _, ch := range sample {
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(sample)) <= binaryThreshold
}

func normalizeMIME(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		return strings.ToLower(mediaType)
	}
	return strings.ToLower(mimeType)
}

func readPlainText(raw []byte) string {
	text := string(bytes.TrimPrefix(raw, []byte("\xEF\xBB\xBF")))
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return text
}

func describeType(mediaType string) string {
	if mediaType == MIMEBinary {
		return "unrecognized binary content"
	}
	return mediaType
}
