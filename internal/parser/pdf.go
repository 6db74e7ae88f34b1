package parser

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

// PDF parses papers fetched directly as PDF documents.
type PDF struct{}

// NewPDF constructs the parser.
func NewPDF() *PDF {
	return &PDF{}
}

// Parse extracts text from the PDF body and splits it into sections. The
// title is a best-effort guess from the first page.
func (p *PDF) Parse(resp crawler.FetchResponse, cfg crawler.SourceConfig) (crawler.PaperFields, error) {
	reader, err := pdf.NewReader(bytes.NewReader(resp.Body), int64(len(resp.Body)))
	if err != nil {
		return crawler.PaperFields{}, &crawler.ParseError{URL: resp.URL, Err: err}
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	text := builder.String()
	if strings.TrimSpace(text) == "" {
		return crawler.PaperFields{}, &crawler.ParseError{URL: resp.URL, Err: errors.New("no extractable text")}
	}

	title := firstSubstantialLine(text)
	if title == "" {
		title = pdfSourceID(resp.URL)
	}

	return crawler.PaperFields{
		Title:    title,
		SourceID: pdfSourceID(resp.URL),
		URL:      resp.URL,
		PDFURL:   resp.URL,
		Sections: ExtractSections(text),
	}, nil
}

// firstSubstantialLine returns the first line long enough to plausibly be a
// title, skipping journal header boilerplate.
func firstSubstantialLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !isBoilerplateLine(line) {
			return line
		}
	}
	return ""
}

func isBoilerplateLine(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "journal"):
		return true
	case strings.Contains(lower, "volume") && strings.Contains(lower, "issue"):
		return true
	case strings.Contains(lower, "copyright"):
		return true
	case strings.Contains(lower, "article") && strings.Contains(lower, "published"):
		return true
	}
	return false
}

func pdfSourceID(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return strings.TrimSuffix(trimmed, ".pdf")
}

var _ crawler.Parser = (*PDF)(nil)
