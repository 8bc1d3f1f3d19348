package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/nguyenthenguyen/docx"
)

// ErrUnsupportedFormat is returned for documents that are not PDF, DOCX or plain text.
var ErrUnsupportedFormat = errors.New("unsupported document format")

var pdfMagic = []byte("%PDF-")

// Documents converts uploaded files into plain text.
type Documents struct {
	PDF *PDFExtractor
}

// ExtractDocument picks an extractor from the file extension, falling back to
// content sniffing for PDFs uploaded without one. Unreadable PDFs and DOCX
// files return a StrategyNone result, not an error; only an unknown format
// is an error.
func (d Documents) ExtractDocument(ctx context.Context, data []byte, fileName string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Strategy: StrategyNone, Err: err}, err
	}
	switch detectFormat(data, fileName) {
	case "pdf":
		if d.PDF == nil {
			return Result{}, errors.New("pdf extractor not configured")
		}
		return d.PDF.Extract(ctx, data), nil
	case "docx":
		text, err := extractDOCX(data)
		if err != nil || strings.TrimSpace(text) == "" {
			if err == nil {
				err = errors.New("docx: no text")
			}
			return Result{Strategy: StrategyNone, Err: err}, nil
		}
		return Result{Text: text, Strategy: StrategyDOCX}, nil
	case "text":
		if !utf8.Valid(data) {
			return Result{Strategy: StrategyNone, Err: errors.New("text: invalid utf-8")}, nil
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return Result{Strategy: StrategyNone, Err: errors.New("text: empty")}, nil
		}
		return Result{Text: text, Strategy: StrategyText}, nil
	default:
		return Result{Strategy: StrategyNone}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

func detectFormat(data []byte, fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	case ".txt", ".text", ".md":
		return "text"
	}
	if bytes.HasPrefix(data, pdfMagic) {
		return "pdf"
	}
	return ""
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx: %w", err)
	}
	defer doc.Close()
	return stripDocxXML(doc.Editable().GetContent()), nil
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return strings.TrimSpace(buf.String())
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.StartElement:
			if t.Name.Local == "tab" {
				buf.WriteString("\t")
			}
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
