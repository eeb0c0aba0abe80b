package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/SlpAus/book-summaries-backend/internal/platform/config"
	"github.com/SlpAus/book-summaries-backend/internal/platform/database"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const googleBody = `{"items":[
	{"id":"g1","volumeInfo":{"title":"Dune","authors":["Frank Herbert"],"publishedDate":"1965","imageLinks":{"thumbnail":"http://img/g1"}}},
	{"id":"g2","volumeInfo":{}},
	{"id":"g3","volumeInfo":{"title":"Dune Messiah"}}
]}`

const openLibraryBody = `{"docs":[
	{"key":"/works/OL1W","title":"Dune","author_name":["Frank Herbert"],"first_publish_year":1965,"cover_i":42},
	{"key":"/books/OL2M"}
]}`

const volumeBody = `{"id":"g1","volumeInfo":{"title":"Dune","subtitle":"Deluxe","pageCount":412,
	"categories":["Fiction"],"averageRating":4.5,"ratingsCount":10,"language":"en","imageLinks":{"thumbnail":"http://img/g1"}}}`

const categoryBody = `{"totalItems":30,"items":[
	{"id":"g1","volumeInfo":{"title":"Dune","averageRating":4.0}},
	{"id":"g2","volumeInfo":{}},
	{"id":"g3","volumeInfo":{"title":"Emma","authors":["Jane Austen"]}}
]}`

const workBody = `{"title":"Dune","description":{"type":"/type/text","value":"Spice"},"covers":[7],
	"subjects":["Science fiction"],"authors":[{"author":{"key":"/authors/OL9A"}},{"author":{"key":"/authors/OL0A"}}]}`

const editionBody = `{"title":"Dune","description":"Plain","authors":[{"key":"/authors/OL9A"}],
	"isbn_13":["9780441013593"],"number_of_pages":528,"publishers":["Ace"]}`

type fakeProviders struct {
	calls       atomic.Int32
	failGoogle  bool
	lastGoogle  string
	lastLibrary string
}

func (f *fakeProviders) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		switch r.URL.Path {
		case "/books/v1/volumes":
			f.lastGoogle = r.URL.RawQuery
			if f.failGoogle {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			if strings.HasPrefix(r.URL.Query().Get("q"), "subject:") {
				_, _ = w.Write([]byte(categoryBody))
				return
			}
			_, _ = w.Write([]byte(googleBody))
		case "/books/v1/volumes/g1":
			_, _ = w.Write([]byte(volumeBody))
		case "/works/OL1W.json":
			_, _ = w.Write([]byte(workBody))
		case "/books/OL2M.json":
			_, _ = w.Write([]byte(editionBody))
		case "/authors/OL9A.json":
			_, _ = w.Write([]byte(`{"name":"Frank Herbert"}`))
		case "/search.json":
			f.lastLibrary = r.URL.RawQuery
			_, _ = w.Write([]byte(openLibraryBody))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSearcher(t *testing.T, f *fakeProviders) *Searcher {
	srv := f.server(t)
	return NewSearcher(config.SearchConfig{
		GoogleBooksURL:    srv.URL + "/books/v1",
		GoogleBooksAPIKey: "secret",
		OpenLibraryURL:    srv.URL,
		MaxResults:        10,
	}, srv.Client())
}

func TestSearchRejectsBlankQueryWithoutNetwork(t *testing.T) {
	f := &fakeProviders{}
	s := newSearcher(t, f)
	for _, q := range []string{"", "   "} {
		_, err := s.Search(context.Background(), q, 0)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	}
	assert.Zero(t, f.calls.Load())
}

func TestSearchMergesBothProviders(t *testing.T) {
	f := &fakeProviders{}
	s := newSearcher(t, f)

	results, err := s.Search(context.Background(), "dune", 0)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, Candidate{
		Source: SourceGoogleBooks, ID: "g1", Title: "Dune", Authors: []string{"Frank Herbert"},
		PublishedDate: "1965", ThumbnailURL: "http://img/g1",
	}, results[0])
	assert.Equal(t, []string{"Unknown"}, results[1].Authors, "没有标题的条目被跳过")

	assert.Equal(t, SourceOpenLibrary, results[2].Source)
	assert.Equal(t, "OL1W", results[2].ID)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/42-M.jpg", results[2].ThumbnailURL)
	assert.Equal(t, "Unknown", results[3].Title)
	assert.Empty(t, results[3].PublishedDate)

	assert.Contains(t, f.lastGoogle, "maxResults=5")
	assert.Contains(t, f.lastGoogle, "key=secret")
	assert.Contains(t, f.lastLibrary, "limit=5")
}

func TestSearchClampsLimit(t *testing.T) {
	f := &fakeProviders{}
	s := newSearcher(t, f)

	_, err := s.Search(context.Background(), "dune", 500)
	require.NoError(t, err)
	assert.Contains(t, f.lastGoogle, "maxResults=20")
	assert.Contains(t, f.lastLibrary, "limit=20")
}

func TestGoogleBooksDetails(t *testing.T) {
	s := newSearcher(t, &fakeProviders{})

	d, err := s.Details(context.Background(), SourceGoogleBooks, "g1", true)
	require.NoError(t, err)
	assert.Equal(t, "Dune", d.Title)
	assert.Equal(t, "Deluxe", d.Subtitle)
	assert.Equal(t, []string{"Unknown"}, d.Authors)
	assert.Equal(t, "Unknown", d.PublishedDate)
	require.NotNil(t, d.PageCount)
	assert.Equal(t, 412, *d.PageCount)
	require.NotNil(t, d.AverageRating)
	assert.Equal(t, 4.5, *d.AverageRating)
	assert.Equal(t, "http://img/g1", d.ThumbnailURL)
	assert.Nil(t, d.Edition)

	_, err = s.Details(context.Background(), SourceGoogleBooks, "missing", true)
	assert.Error(t, err)
}

func TestOpenLibraryDetails(t *testing.T) {
	s := newSearcher(t, &fakeProviders{})
	ctx := context.Background()

	work, err := s.Details(ctx, SourceOpenLibrary, "OL1W", true)
	require.NoError(t, err)
	assert.Equal(t, "Spice", work.Description)
	assert.Equal(t, []string{"Frank Herbert", "Unknown"}, work.Authors, "无法解析的作者记为 Unknown")
	assert.Equal(t, "https://covers.openlibrary.org/b/id/7-M.jpg", work.ThumbnailURL)
	assert.Equal(t, []string{"Science fiction"}, work.Subjects)
	assert.Nil(t, work.Edition)

	edition, err := s.Details(ctx, SourceOpenLibrary, "OL2M", false)
	require.NoError(t, err)
	assert.Equal(t, "Plain", edition.Description)
	assert.Equal(t, []string{"Frank Herbert"}, edition.Authors)
	require.NotNil(t, edition.Edition)
	assert.Equal(t, []string{"9780441013593"}, edition.ISBN13)
	require.NotNil(t, edition.NumberOfPages)
	assert.Equal(t, 528, *edition.NumberOfPages)

	raw, err := json.Marshal(edition)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"isbn_13":["9780441013593"]`)

	_, err = s.Details(ctx, "Somewhere", "x", true)
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestByCategoryPaging(t *testing.T) {
	f := &fakeProviders{}
	s := newSearcher(t, f)
	ctx := context.Background()

	_, err := s.ByCategory(ctx, " ", 1, 12)
	assert.ErrorIs(t, err, ErrNoCategoryCode)

	page, err := s.ByCategory(ctx, "fiction", 2, 100)
	require.NoError(t, err)
	assert.Contains(t, f.lastGoogle, "maxResults=40")
	assert.Contains(t, f.lastGoogle, "startIndex=40")
	assert.Contains(t, f.lastGoogle, "q=subject%3Afiction")
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 30, page.TotalCount)
	assert.False(t, page.HasMore)
	require.Len(t, page.Results, 2)
	assert.Equal(t, []string{"Unknown"}, page.Results[0].Authors)

	page, err = s.ByCategory(ctx, "fiction", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Contains(t, f.lastGoogle, "maxResults=12")
	assert.True(t, page.HasMore)

	f.failGoogle = true
	page, err = s.ByCategory(ctx, "fiction", 1, 12)
	assert.Error(t, err)
	assert.Empty(t, page.Results)
	assert.NotNil(t, page.Results)
}

func TestSearchToleratesProviderFailure(t *testing.T) {
	f := &fakeProviders{failGoogle: true}
	s := newSearcher(t, f)

	results, err := s.Search(context.Background(), "dune", 4)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, SourceOpenLibrary, r.Source)
	}
}

func TestLanguageAndSlug(t *testing.T) {
	assert.Equal(t, "english", LanguageForSite("en"))
	assert.Equal(t, "spanish", LanguageForSite("es"))
	assert.Equal(t, "french", LanguageForSite("fr"))
	assert.Equal(t, "hindi", LanguageForSite("de"))
	assert.Equal(t, "hindi", LanguageForSite(""))

	assert.Equal(t, "the-7-habits-of-highly-effective-people", Slugify("The 7 Habits of Highly Effective People"))
	assert.Equal(t, "dune-messiah", Slugify("  Dune: -- Messiah "))
	assert.Len(t, Slugify(strings.Repeat("a", 150)), 100)
}

func newService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, MigrateDB(db))
	return NewService(db)
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.Submit(ctx, "u1", Request{Title: "Dune", BookID: "g1", Summary: "  "})
	assert.ErrorIs(t, err, ErrEmptySummary)

	_, err = svc.Submit(ctx, "u1", Request{Summary: "great"})
	assert.ErrorIs(t, err, ErrNoBook)

	_, err = svc.Submit(ctx, "u1", Request{Title: "Dune", BookID: "g1", Summary: "great", Language: "klingon"})
	assert.ErrorIs(t, err, ErrInvalidLanguage)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmitStoresPendingAndExports(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	sub, err := svc.Submit(ctx, "u1", Request{
		Title: "Dune", Authors: Authors{"Frank Herbert"}, BookID: "g1",
		Summary: "Spice must flow.", Lang: "es",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, sub.Status)
	assert.Equal(t, "spanish", sub.Language)
	assert.Equal(t, "dune", sub.Slug)
	assert.Equal(t, "Summary of the book 'Dune' by Frank Herbert.", sub.Description)
	assert.Equal(t, []string{"user-submitted", "pending-review"}, sub.Tags)

	_, err = svc.Submit(ctx, "u2", Request{Title: "Emma", BookID: "g2", Summary: "Matchmaking."})
	require.NoError(t, err)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, []string{"Unknown"}, pending[1].Authors)

	dir := t.TempDir()
	n, err := svc.ExportPending(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	blob, err := os.ReadFile(filepath.Join(dir, "dune-spanish.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(blob), "---\ntitle: Dune\n"))
	assert.Contains(t, string(blob), "status: pending")
	assert.True(t, strings.HasSuffix(string(blob), "---\n\nSpice must flow.\n"))

	_, err = os.Stat(filepath.Join(dir, "emma.md"))
	assert.NoError(t, err)
}

func TestAuthorsAcceptsStringOrList(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"authors":"Jane Austen"}`), &req))
	assert.Equal(t, Authors{"Jane Austen"}, req.Authors)
	require.NoError(t, json.Unmarshal([]byte(`{"authors":["A","B"]}`), &req))
	assert.Equal(t, Authors{"A", "B"}, req.Authors)
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(newSearcher(t, &fakeProviders{}), newService(t))
	r := gin.New()
	r.GET("/api/book/search", h.Search)
	r.POST("/api/book/submit-summary", h.SubmitSummary)
	r.GET("/api/book/details", h.Details)
	r.GET("/api/categories", h.Categories)
	r.GET("/api/books/category", h.ByCategory)

	do := func(method, target, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, target, strings.NewReader(body)))
		return w
	}

	w := do(http.MethodGet, "/api/book/search", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No search query provided"}`, w.Body.String())

	w = do(http.MethodGet, "/api/book/search?query=dune", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Query   string      `json:"query"`
		Results []Candidate `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "dune", resp.Query)
	assert.Len(t, resp.Results, 4)

	w = do(http.MethodPost, "/api/book/submit-summary", `nope`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(http.MethodPost, "/api/book/submit-summary", `{"title":"Dune","bookId":"g1","summary":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Please enter a summary"}`, w.Body.String())

	w = do(http.MethodPost, "/api/book/submit-summary", `{"title":"Dune","authors":"Frank Herbert","bookId":"g1","summary":"ok"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = do(http.MethodGet, "/api/book/details?id=g1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Book ID and source are required"}`, w.Body.String())

	w = do(http.MethodGet, "/api/book/details?id=nope&source=Google+Books", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Book not found"}`, w.Body.String())

	w = do(http.MethodGet, "/api/book/details?id=OL2M&source=Open+Library&is_work=false", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"number_of_pages":528`)

	w = do(http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cats []Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cats))
	require.Len(t, cats, 2)
	assert.Equal(t, "fiction", cats[0].Code)
	assert.Len(t, cats[0].Subcategories[0].Subcategories, 6)

	w = do(http.MethodGet, "/api/books/category", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// g1 刚刚收到投稿
	w = do(http.MethodGet, "/api/books/category?code=fiction", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page CategoryPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Results, 2)
	assert.True(t, page.Results[0].HasSummary)
	assert.False(t, page.Results[1].HasSummary)
}
