package services

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"persona-knowledge-engine/models"

	"github.com/ledongthuc/pdf"
)

// ResolveContentType normalizes a caller hint, falling back to the file
// extension, then to plain text.
func ResolveContentType(hint, filename string) string {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case models.ContentTypePDF:
		return models.ContentTypePDF
	case models.ContentTypeMarkdown:
		return models.ContentTypeMarkdown
	case models.ContentTypeText:
		return models.ContentTypeText
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return models.ContentTypePDF
	case ".md", ".markdown":
		return models.ContentTypeMarkdown
	default:
		return models.ContentTypeText
	}
}

// ExtractContent turns an uploaded file into plain text. PDFs go through
// the PDF extractor; everything else is read as UTF-8 text.
func ExtractContent(data []byte, contentType string) (string, error) {
	if contentType == models.ContentTypePDF {
		return ExtractPDFText(data)
	}
	return string(data), nil
}

// ExtractPDFText pulls plain text out of PDF bytes, page by page. Pages
// that fail to decode are skipped rather than failing the document.
func ExtractPDFText(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	extracted := textBuilder.String()
	if strings.TrimSpace(extracted) == "" {
		return "", fmt.Errorf("no extractable text in PDF (%d pages)", pages)
	}
	return extracted, nil
}
