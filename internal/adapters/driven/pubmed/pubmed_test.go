package pubmed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/httpx"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
)

const efetchXML = `<?xml version="1.0" ?>
<PubmedArticleSet>
 <PubmedArticle>
  <MedlineCitation>
   <PMID Version="1">28350000</PMID>
   <Article>
    <Journal>
     <JournalIssue><Volume>65</Volume><PubDate><MedlineDate>2017 Dec-2018 Jan</MedlineDate></PubDate></JournalIssue>
     <Title>Clinical infectious diseases</Title>
    </Journal>
    <ArticleTitle>Oral step-down therapy for <i>Streptococcus</i> bacteremia.</ArticleTitle>
    <Abstract><AbstractText>Single paragraph.</AbstractText></Abstract>
    <AuthorList><Author><CollectiveName>IDSA Working Group</CollectiveName></Author></AuthorList>
   </Article>
  </MedlineCitation>
  <PubmedData><ArticleIdList><ArticleId IdType="pubmed">28350000</ArticleId></ArticleIdList></PubmedData>
 </PubmedArticle>
 <PubmedArticle>
  <MedlineCitation>
   <PMID Version="1">32658968</PMID>
   <Article>
    <Journal>
     <JournalIssue><Volume>77</Volume><PubDate><Year>2020</Year></PubDate></JournalIssue>
     <Title>American journal of health-system pharmacy</Title>
     <ISOAbbreviation>Am J Health Syst Pharm</ISOAbbreviation>
    </Journal>
    <ArticleTitle>Therapeutic monitoring of vancomycin for serious MRSA infections.</ArticleTitle>
    <Pagination><MedlinePgn>835-864</MedlinePgn></Pagination>
    <Abstract>
     <AbstractText Label="PURPOSE">AUC-guided dosing is <b>recommended</b>.</AbstractText>
     <AbstractText Label="SUMMARY">Trough-only monitoring is no longer advised.</AbstractText>
    </Abstract>
    <AuthorList>
     <Author><LastName>Rybak</LastName><Initials>MJ</Initials></Author>
     <Author><LastName>Le</LastName><Initials>J</Initials></Author>
    </AuthorList>
   </Article>
  </MedlineCitation>
  <PubmedData>
   <ArticleIdList>
    <ArticleId IdType="pubmed">32658968</ArticleId>
    <ArticleId IdType="doi">10.1093/ajhp/zxaa036</ArticleId>
    <ArticleId IdType="pmc">PMC7000000</ArticleId>
   </ArticleIdList>
  </PubmedData>
 </PubmedArticle>
</PubmedArticleSet>`

func eutilsServer(t *testing.T, idlist string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, DefaultTool, q.Get("tool"))
		assert.Equal(t, "pubmed", q.Get("db"))
		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "vancomycin monitoring", q.Get("term"))
			assert.Equal(t, "3", q.Get("retmax"))
			assert.Equal(t, "key", q.Get("api_key"))
			_, _ = w.Write([]byte(`{"esearchresult":{"idlist":` + idlist + `}}`))
		case "/efetch.fcgi":
			_, _ = w.Write([]byte(efetchXML))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "key",
		Limiter: httpx.NewRateLimiter(1000, 10),
	})
}

func TestClient_Search(t *testing.T) {
	srv, _ := eutilsServer(t, `["32658968","28350000","99999999"]`)
	c := newTestClient(srv)

	results, err := c.Search(context.Background(), "vancomycin monitoring", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)

	first := results[0]
	assert.Equal(t, domain.TierExternalSearch, first.Tier)
	assert.InDelta(t, 1.0, first.Similarity, 1e-9)
	assert.Equal(t, "32658968", first.Metadata.ExternalID)
	assert.Equal(t, "pmid:32658968", first.Metadata.DocumentID)
	assert.Equal(t, "Therapeutic monitoring of vancomycin for serious MRSA infections", first.Metadata.Title)
	assert.Equal(t, []string{"Rybak MJ", "Le J"}, first.Metadata.Authors)
	assert.Equal(t, "Rybak MJ", first.Metadata.FirstAuthor)
	assert.Equal(t, 2020, first.Metadata.Year)
	assert.Equal(t, "Am J Health Syst Pharm", first.Metadata.Venue)
	assert.Equal(t, "835-864", first.Metadata.Pages)
	assert.Equal(t, "PMC7000000", first.Metadata.PMCID)
	assert.Equal(t, "10.1093/ajhp/zxaa036", first.Metadata.DOI)
	assert.Equal(t, "PURPOSE: AUC-guided dosing is recommended.\nSUMMARY: Trough-only monitoring is no longer advised.",
		first.Abstract)
	assert.Equal(t, first.Abstract, first.Text)

	second := results[1]
	assert.Equal(t, "Oral step-down therapy for Streptococcus bacteremia", second.Metadata.Title)
	assert.Equal(t, 2017, second.Metadata.Year)
	assert.Equal(t, "Clinical infectious diseases", second.Metadata.Venue)
	assert.Equal(t, []string{"IDSA Working Group"}, second.Metadata.Authors)
	assert.Less(t, second.Similarity, first.Similarity)
	assert.Greater(t, second.Similarity, 0.5)
}

func TestClient_SearchNoHits(t *testing.T) {
	srv, calls := eutilsServer(t, `[]`)
	c := newTestClient(srv)

	results, err := c.Search(context.Background(), "vancomycin monitoring", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int32(1), calls.Load(), "no efetch without ids")

	results, err = c.Search(context.Background(), "  ", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, "PubMed", c.Name())
}

func TestClient_SearchUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL, Limiter: httpx.NewRateLimiter(1000, 10)})
	_, err := c.Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)
}

func TestRankSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, RankSimilarity(0, 4), 1e-9)
	assert.InDelta(t, 0.625, RankSimilarity(3, 4), 1e-9)
	assert.Zero(t, RankSimilarity(0, 0))
}
