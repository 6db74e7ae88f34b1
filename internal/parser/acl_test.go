package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dangvonguyen/research-agent/internal/crawler"
)

const aclPaperHTML = `<!DOCTYPE html>
<html>
<head>
<meta name="citation_title" content="Attention Is Not All You Need">
<meta name="citation_author" content="Nguyen, Minh">
<meta name="citation_author" content="Tran, Lan">
</head>
<body>
<div class="acl-paper-details">
  <dl>
    <dt>PDF:</dt><dd><a href="https://aclanthology.org/2024.acl-long.1.pdf">PDF</a></dd>
    <dt>Year:</dt><dd>2024</dd>
    <dt>Venues:</dt><dd>ACL | Findings</dd>
  </dl>
</div>
<div class="acl-abstract"><h5>Abstract</h5><span>We revisit attention mechanisms in detail.</span></div>
</body>
</html>`

func aclConfig() crawler.SourceConfig {
	return crawler.SourceConfig{
		Name:    "acl",
		Source:  crawler.SourceACLAnthology,
		BaseURL: "https://aclanthology.org",
	}
}

func TestACLParse(t *testing.T) {
	t.Parallel()

	p := NewACLAnthology()
	resp := crawler.FetchResponse{
		URL:        "https://aclanthology.org/2024.acl-long.1/",
		StatusCode: 200,
		Body:       []byte(aclPaperHTML),
	}

	fields, err := p.Parse(resp, aclConfig())
	require.NoError(t, err)
	require.Equal(t, "Attention Is Not All You Need", fields.Title)
	require.Equal(t, []string{"Nguyen, Minh", "Tran, Lan"}, fields.Authors)
	require.Equal(t, "2024.acl-long.1", fields.SourceID)
	require.Equal(t, "https://aclanthology.org/2024.acl-long.1.pdf", fields.PDFURL)
	require.Equal(t, 2024, fields.Year)
	require.Equal(t, []string{"ACL", "Findings"}, fields.Venues)
	require.Equal(t, "We revisit attention mechanisms in detail.", fields.Sections["abstract"].Content)
}

func TestACLParseMissingTitle(t *testing.T) {
	t.Parallel()

	p := NewACLAnthology()
	resp := crawler.FetchResponse{
		URL:  "https://aclanthology.org/2024.acl-long.2/",
		Body: []byte(`<html><head></head><body></body></html>`),
	}

	_, err := p.Parse(resp, aclConfig())
	var parseErr *crawler.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, resp.URL, parseErr.URL)
}

func TestACLSearchURL(t *testing.T) {
	t.Parallel()

	p := NewACLAnthology()
	searchURL, ok := p.SearchURL(aclConfig(), "neural machine translation")
	require.True(t, ok)
	require.Equal(t, "https://aclanthology.org/search/?q=neural+machine+translation", searchURL)
}

func TestACLExtractLinks(t *testing.T) {
	t.Parallel()

	body := `<html><body>
<p class="d-sm-flex"><a class="badge" href="/2024.acl-long.10.pdf">pdf</a></p>
<p class="d-sm-flex"><a class="badge" href="/2024.acl-long.11.pdf">pdf</a></p>
</body></html>`

	p := NewACLAnthology()
	links, err := p.ExtractLinks(crawler.FetchResponse{
		URL:  "https://aclanthology.org/search/?q=x",
		Body: []byte(body),
	}, aclConfig())
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://aclanthology.org/2024.acl-long.10",
		"https://aclanthology.org/2024.acl-long.11",
	}, links)
}

func TestACLExtractLinksEmptyResults(t *testing.T) {
	t.Parallel()

	p := NewACLAnthology()
	links, err := p.ExtractLinks(crawler.FetchResponse{
		URL:  "https://aclanthology.org/search/?q=x",
		Body: []byte(`<html><body><p>No results.</p></body></html>`),
	}, aclConfig())
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestRegistryForSource(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	for _, src := range []crawler.Source{
		crawler.SourceACLAnthology, crawler.SourceArxiv, crawler.SourceGenericPDF,
	} {
		p, err := reg.ForSource(src)
		require.NoError(t, err)
		require.NotNil(t, p)
	}

	_, err := reg.ForSource(crawler.Source("unknown"))
	require.Error(t, err)
}
