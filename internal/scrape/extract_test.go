package scrape

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const ogDocument = `<html><head>
<meta property="og:title" content="Release notes" />
<meta property="og:description" content="What changed this cycle" />
<meta property="og:image" content="https://cdn.example.org/cover.png" />
<title>fallback title</title>
</head><body></body></html>`

func TestExtractPrefersOpenGraph(t *testing.T) {
	t.Parallel()

	md := Extract("https://example.org/notes", []byte(ogDocument))
	require.Equal(t, "Release notes", md.Title)
	require.Equal(t, "What changed this cycle", md.Description)
	require.Equal(t, "https://cdn.example.org/cover.png", md.ImageURL)
}

func TestExtractFallsBackToDocumentStructure(t *testing.T) {
	t.Parallel()

	doc := `<html><head>
<title>  Plain   page  </title>
<meta name="description" content="A described page" />
</head><body></body></html>`

	md := Extract("https://example.org", []byte(doc))
	require.Equal(t, "Plain page", md.Title, "whitespace runs collapse")
	require.Equal(t, "A described page", md.Description)
	require.Empty(t, md.ImageURL)
}

func TestExtractFallsBackToHeadingAndParagraph(t *testing.T) {
	t.Parallel()

	doc := `<html><head></head><body>
<h1>Heading title</h1>
<p>First paragraph text.</p>
</body></html>`

	md := Extract("https://example.org", []byte(doc))
	require.Equal(t, "Heading title", md.Title)
	require.Equal(t, "First paragraph text.", md.Description)
}

func TestExtractResolvesRelativeImageURL(t *testing.T) {
	t.Parallel()

	doc := `<html><head>
<meta property="og:title" content="T" />
<meta property="og:image" content="/img/cover.png" />
</head></html>`

	md := Extract("https://example.org/article/42", []byte(doc))
	require.Equal(t, "https://example.org/img/cover.png", md.ImageURL)
}

func TestExtractDropsUnresolvableImageURL(t *testing.T) {
	t.Parallel()

	doc := `<html><head>
<meta property="og:image" content="cover.png" />
</head></html>`

	md := Extract("", []byte(doc))
	require.Empty(t, md.ImageURL, "relative image with no usable base is dropped")
}

func TestExtractToleratesGarbage(t *testing.T) {
	t.Parallel()

	md := Extract("https://example.org", []byte{0x00, 0xff, 0x13, 0x37})
	require.True(t, md.Empty())
}

func TestExtractToleratesTruncatedDocument(t *testing.T) {
	t.Parallel()

	// A buffer cut mid-tag, as produced when the scrape cap fires.
	doc := `<html><head><meta property="og:title" content="Partial doc" /><meta prop`
	md := Extract("https://example.org", []byte(doc))
	require.Equal(t, "Partial doc", md.Title)
}

func TestExtractClampsOversizedFields(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 400)
	doc := `<html><head><title>` + long + `</title>
<meta name="description" content="` + long + `" /></head></html>`

	md := Extract("https://example.org", []byte(doc))
	require.LessOrEqual(t, len(md.Title), maxTitleLen)
	require.LessOrEqual(t, len(md.Description), maxDescriptionLen)
	require.NotEmpty(t, md.Title)
}
