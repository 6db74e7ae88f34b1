package parser

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

// ACLAnthology parses aclanthology.org paper pages and search listings.
type ACLAnthology struct{}

// NewACLAnthology constructs the parser.
func NewACLAnthology() *ACLAnthology {
	return &ACLAnthology{}
}

// Parse extracts paper fields from an anthology paper page.
func (p *ACLAnthology) Parse(resp crawler.FetchResponse, cfg crawler.SourceConfig) (crawler.PaperFields, error) {
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
		SourceID: paperIDFromURL(resp.URL),
		URL:      resp.URL,
		Sections: map[string]crawler.PaperSection{},
	}

	if abstract := strings.TrimSpace(doc.Find(".acl-abstract > span").First().Text()); abstract != "" {
		fields.Sections["abstract"] = crawler.PaperSection{
			Title:   "Abstract",
			Content: abstract,
			Level:   1,
		}
	}

	if pdfURL := dtValue(doc, "PDF:"); pdfURL != "" {
		fields.PDFURL = pdfURL
	}
	if yearStr := dtValue(doc, "Year:"); yearStr != "" {
		if year, err := strconv.Atoi(yearStr); err == nil {
			fields.Year = year
		}
	}
	venue := dtValue(doc, "Venue:")
	if venue == "" {
		venue = dtValue(doc, "Venues:")
	}
	if venue != "" {
		for _, v := range strings.Split(venue, "|") {
			if v = strings.TrimSpace(v); v != "" {
				fields.Venues = append(fields.Venues, v)
			}
		}
	}

	return fields, nil
}

// SearchURL builds the anthology search page URL for the query.
func (p *ACLAnthology) SearchURL(cfg crawler.SourceConfig, query string) (string, bool) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return "", false
	}
	return fmt.Sprintf("%s/search/?q=%s", base, url.QueryEscape(query)), true
}

// ExtractLinks enumerates paper URLs from a search or event listing page. Each
// listing row carries a badge link to the PDF from which the paper ID is
// derived.
func (p *ACLAnthology) ExtractLinks(resp crawler.FetchResponse, cfg crawler.SourceConfig) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &crawler.ParseError{URL: resp.URL, Err: err}
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	var links []string
	doc.Find("p.d-sm-flex").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Find("a.badge").First().Attr("href")
		if !ok {
			return
		}
		id := paperIDFromURL(href)
		if id == "" {
			return
		}
		links = append(links, base+"/"+id)
	})
	return links, nil
}

// paperIDFromURL takes the last path segment and drops any file extension:
// "/2023.acl-long.1.pdf" and "/2023.acl-long.1/" both yield "2023.acl-long.1".
func paperIDFromURL(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if strings.HasSuffix(trimmed, ".pdf") {
		trimmed = strings.TrimSuffix(trimmed, ".pdf")
	}
	return trimmed
}

func dtValue(doc *goquery.Document, label string) string {
	var value string
	doc.Find("dt").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != label {
			return true
		}
		dd := s.NextFiltered("dd")
		if dd.Length() > 0 {
			if href, ok := dd.Find("a").First().Attr("href"); ok && label == "PDF:" {
				value = href
			} else {
				value = strings.TrimSpace(dd.Text())
			}
		}
		return false
	})
	return value
}

var (
	_ crawler.Parser   = (*ACLAnthology)(nil)
	_ crawler.Searcher = (*ACLAnthology)(nil)
)
