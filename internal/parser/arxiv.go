package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

const arxivDefaultSearchResults = 20

// Arxiv parses arxiv.org abstract pages and expands queries through the
// export Atom API.
type Arxiv struct{}

// NewArxiv constructs the parser.
func NewArxiv() *Arxiv {
	return &Arxiv{}
}

// Parse extracts paper fields from an arXiv abstract page.
func (p *Arxiv) Parse(resp crawler.FetchResponse, cfg crawler.SourceConfig) (crawler.PaperFields, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return crawler.PaperFields{}, &crawler.ParseError{URL: resp.URL, Err: err}
	}

	title, ok := doc.Find(`meta[name="citation_title"]`).Attr("content")
	if !ok || strings.TrimSpace(title) == "" {
		return crawler.PaperFields{}, &crawler.ParseError{URL: resp.URL, Err: errors.New("missing citation_title")}
	}

	var authors []string
	doc.Find(`meta[name="citation_author"]`).Each(func(_ int, s *goquery.Selection) {
		if name, ok := s.Attr("content"); ok && name != "" {
			authors = append(authors, name)
		}
	})

	fields := crawler.PaperFields{
		Title:    strings.TrimSpace(title),
		Authors:  authors,
		SourceID: arxivID(resp.URL),
		URL:      resp.URL,
		Sections: map[string]crawler.PaperSection{},
	}

	if pdfURL, ok := doc.Find(`meta[name="citation_pdf_url"]`).Attr("content"); ok {
		fields.PDFURL = pdfURL
	}
	if date, ok := doc.Find(`meta[name="citation_date"]`).Attr("content"); ok && len(date) >= 4 {
		if year, err := strconv.Atoi(date[:4]); err == nil {
			fields.Year = year
		}
	}

	abstract := strings.TrimSpace(doc.Find("blockquote.abstract").First().Text())
	abstract = strings.TrimSpace(strings.TrimPrefix(abstract, "Abstract:"))
	if abstract != "" {
		fields.Sections["abstract"] = crawler.PaperSection{
			Title:   "Abstract",
			Content: abstract,
			Level:   1,
		}
	}

	return fields, nil
}

// SearchURL builds the export API query for the free-text query. The result
// count follows the config ceiling when set.
func (p *Arxiv) SearchURL(cfg crawler.SourceConfig, query string) (string, bool) {
	maxResults := cfg.MaxPapers
	if maxResults <= 0 {
		maxResults = arxivDefaultSearchResults
	}
	words := strings.Fields(query)
	if len(words) == 0 {
		return "", false
	}
	for i, w := range words {
		words[i] = url.QueryEscape(w)
	}
	return fmt.Sprintf(
		"https://export.arxiv.org/api/query?search_query=all:%s&start=0&max_results=%d&sortBy=relevance&sortOrder=descending",
		strings.Join(words, "+"), maxResults,
	), true
}

// ExtractLinks parses the export API Atom feed into abstract page URLs, in the
// API's relevance order.
func (p *Arxiv) ExtractLinks(resp crawler.FetchResponse, cfg crawler.SourceConfig) ([]string, error) {
	var feed arxivFeed
	if err := xml.Unmarshal(resp.Body, &feed); err != nil {
		return nil, &crawler.ParseError{URL: resp.URL, Err: err}
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://arxiv.org"
	}
	var links []string
	for _, entry := range feed.Entries {
		id := arxivID(entry.ID)
		if id == "" {
			continue
		}
		links = append(links, base+"/abs/"+id)
	}
	return links, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID string `xml:"id"`
}

// arxivID pulls the arXiv ID out of an abs URL, stripping any version suffix
// ("http://arxiv.org/abs/2301.07041v1" yields "2301.07041").
func arxivID(rawURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(rawURL, prefix)
	if idx < 0 {
		return ""
	}
	id := strings.TrimRight(rawURL[idx+len(prefix):], "/")
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

var (
	_ crawler.Parser   = (*Arxiv)(nil)
	_ crawler.Searcher = (*Arxiv)(nil)
)
