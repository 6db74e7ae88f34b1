package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

const arxivAbsHTML = `<!DOCTYPE html>
<html>
<head>
<meta name="citation_title" content="Scaling Laws for Retrieval">
<meta name="citation_author" content="Pham, Quynh">
<meta name="citation_author" content="Le, Huy">
<meta name="citation_date" content="2024/03/15">
<meta name="citation_pdf_url" content="https://arxiv.org/pdf/2403.01234">
</head>
<body>
<blockquote class="abstract mathjax">
<span class="descriptor">Abstract:</span> Retrieval quality follows a power law.
</blockquote>
</body>
</html>`

const arxivFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2403.01234v2</id>
    <title>Scaling Laws for Retrieval</title>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00007v1</id>
    <title>Another Paper</title>
  </entry>
</feed>`

func arxivConfig() crawler.SourceConfig {
	return crawler.SourceConfig{
		Name:    "arxiv",
		Source:  crawler.SourceArxiv,
		BaseURL: "https://arxiv.org",
	}
}

func TestArxivParse(t *testing.T) {
	t.Parallel()

	p := NewArxiv()
	resp := crawler.FetchResponse{
		URL:        "https://arxiv.org/abs/2403.01234v2",
		StatusCode: 200,
		Body:       []byte(arxivAbsHTML),
	}

	fields, err := p.Parse(resp, arxivConfig())
	require.NoError(t, err)
	require.Equal(t, "Scaling Laws for Retrieval", fields.Title)
	require.Equal(t, []string{"Pham, Quynh", "Le, Huy"}, fields.Authors)
	require.Equal(t, "2403.01234", fields.SourceID)
	require.Equal(t, "https://arxiv.org/pdf/2403.01234", fields.PDFURL)
	require.Equal(t, 2024, fields.Year)
	require.Equal(t, "Retrieval quality follows a power law.", fields.Sections["abstract"].Content)
}

func TestArxivParseMissingTitle(t *testing.T) {
	t.Parallel()

	p := NewArxiv()
	_, err := p.Parse(crawler.FetchResponse{
		URL:  "https://arxiv.org/abs/2403.01234",
		Body: []byte(`<html><head></head></html>`),
	}, arxivConfig())

	var parseErr *crawler.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestArxivSearchURL(t *testing.T) {
	t.Parallel()

	p := NewArxiv()

	cfg := arxivConfig()
	cfg.MaxPapers = 5
	searchURL, ok := p.SearchURL(cfg, "scaling laws")
	require.True(t, ok)
	require.Equal(t,
		"https://export.arxiv.org/api/query?search_query=all:scaling+laws&start=0&max_results=5&sortBy=relevance&sortOrder=descending",
		searchURL)

	_, ok = p.SearchURL(cfg, "   ")
	require.False(t, ok)
}

func TestArxivExtractLinks(t *testing.T) {
	t.Parallel()

	p := NewArxiv()
	links, err := p.ExtractLinks(crawler.FetchResponse{
		URL:  "https://export.arxiv.org/api/query?search_query=all:x",
		Body: []byte(arxivFeedXML),
	}, arxivConfig())
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://arxiv.org/abs/2403.01234",
		"https://arxiv.org/abs/2401.00007",
	}, links)
}

func TestArxivExtractLinksBadXML(t *testing.T) {
	t.Parallel()

	p := NewArxiv()
	_, err := p.ExtractLinks(crawler.FetchResponse{
		URL:  "https://export.arxiv.org/api/query",
		Body: []byte("<feed><entry>"),
	}, arxivConfig())

	var parseErr *crawler.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestArxivID(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"http://arxiv.org/abs/2301.07041v1":  "2301.07041",
		"https://arxiv.org/abs/2301.07041":   "2301.07041",
		"https://arxiv.org/abs/2301.07041/":  "2301.07041",
		"https://arxiv.org/pdf/2301.07041v1": "",
	}
	for rawURL, want := range cases {
		require.Equal(t, want, arxivID(rawURL), rawURL)
	}
}
