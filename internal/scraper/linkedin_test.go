package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/openjob/internal/model"
	"github.com/amishk599/openjob/internal/ratelimit"
)

func card(id, title, company, location, date string) string {
	return fmt.Sprintf(`<li>
		<div class="base-card base-card--link base-search-card">
			<a class="base-card__full-link" href="https://www.linkedin.com/jobs/view/%s-at-%s-%s?refId=abc&amp;trackingId=xyz">
				<span class="sr-only">%s</span>
			</a>
			<div class="base-search-card__info">
				<h3 class="base-search-card__title">
					%s
				</h3>
				<h4 class="base-search-card__subtitle">
					<a class="hidden-nested-link">%s</a>
				</h4>
				<div class="base-search-card__metadata">
					<span class="job-search-card__location">%s</span>
					<time class="job-search-card__listdate" datetime="%s">1 day ago</time>
				</div>
			</div>
		</div>
	</li>`, strings.ReplaceAll(strings.ToLower(title), " ", "-"), company, id, title, title, company, location, date)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScraper(srv *httptest.Server, categories map[model.Category]CategorySearch, locations []string) *LinkedInScraper {
	s := NewLinkedInScraper(
		srv.Client(),
		ratelimit.NewHostLimiter(0),
		categories,
		locations,
		7,
		30,
		nil,
		testLogger(),
	)
	s.searchBase = srv.URL + "/search"
	s.postingBase = srv.URL + "/posting"
	s.now = func() time.Time { return time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestParseCards_ExtractsAllFields(t *testing.T) {
	body := card("4100000001", "Machine Learning Engineer", "Acme", "San Francisco, CA", "2026-02-24") +
		card("4100000002", "Software Engineer", "Globex", "New York, NY", "2026-02-23")

	cards := parseCards(body)
	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}

	c := cards[0]
	if c.id != "4100000001" {
		t.Errorf("expected id 4100000001, got %s", c.id)
	}
	if c.title != "Machine Learning Engineer" {
		t.Errorf("expected title Machine Learning Engineer, got %q", c.title)
	}
	if c.company != "Acme" {
		t.Errorf("expected company Acme, got %q", c.company)
	}
	if c.location != "San Francisco, CA" {
		t.Errorf("expected location San Francisco, CA, got %q", c.location)
	}
	if c.postedAt == nil {
		t.Fatal("expected postedAt to be set")
	}
	if got := c.postedAt.Format("2006-01-02"); got != "2026-02-24" {
		t.Errorf("expected postedAt 2026-02-24, got %s", got)
	}
	if strings.Contains(c.url, "?") {
		t.Errorf("expected tracking params stripped from URL, got %s", c.url)
	}
}

func TestParseCards_SkipsCardsWithoutLink(t *testing.T) {
	body := `<li><div class="base-search-card"><h3 class="base-search-card__title">Orphan</h3></div></li>` +
		card("4100000003", "Data Engineer", "Initech", "Austin, TX", "2026-02-24")

	cards := parseCards(body)
	if len(cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(cards))
	}
	if cards[0].id != "4100000003" {
		t.Errorf("expected surviving card 4100000003, got %s", cards[0].id)
	}
}

func TestParseCards_UnescapesEntities(t *testing.T) {
	body := card("4100000004", "Engineer, AI &amp; ML", "Johnson &amp; Johnson", "San Jose, CA", "2026-02-24")

	cards := parseCards(body)
	if len(cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(cards))
	}
	if cards[0].title != "Engineer, AI & ML" {
		t.Errorf("expected unescaped title, got %q", cards[0].title)
	}
	if cards[0].company != "Johnson & Johnson" {
		t.Errorf("expected unescaped company, got %q", cards[0].company)
	}
}

func TestParseDescription_PreservesParagraphs(t *testing.T) {
	body := `<div class="decorated-job-posting__details">
		<div class="show-more-less-html__markup relative overflow-hidden">
			<p>About the role.</p>
			<ul><li>Build ML pipelines</li><li>Ship models</li></ul>
			<p>Requirements: 2+ years of Python &amp; Go.</p>
		</div>
	</div>`

	got := parseDescription(body)
	for _, want := range []string{"About the role.", "Build ML pipelines", "Ship models", "Requirements: 2+ years of Python & Go."} {
		if !strings.Contains(got, want) {
			t.Errorf("expected description to contain %q, got:\n%s", want, got)
		}
	}
	if strings.Contains(got, "<") {
		t.Errorf("expected tags stripped, got:\n%s", got)
	}
}

func TestParseDescription_MissingMarkupReturnsEmpty(t *testing.T) {
	if got := parseDescription("<html><body>not a posting page</body></html>"); got != "" {
		t.Errorf("expected empty description, got %q", got)
	}
}

func TestLocationMatch(t *testing.T) {
	cases := []struct {
		job   string
		query string
		want  bool
	}{
		{"San Francisco, CA", "San Francisco, CA", true},
		{"San Francisco Bay Area", "San Francisco, CA", true},
		{"Sacramento, CA", "San Francisco, CA", false},
		{"Remote, United States", "Remote", true},
		{"New York, NY", "Remote", false},
		{"United States (Remote)", "Remote", true},
		{"", "San Francisco, CA", false},
	}
	for _, tc := range cases {
		if got := locationMatch(tc.job, tc.query); got != tc.want {
			t.Errorf("locationMatch(%q, %q) = %v, want %v", tc.job, tc.query, got, tc.want)
		}
	}
}

func TestDiscover_CollectsAndFiltersCards(t *testing.T) {
	searchBody := card("4100000010", "ML Engineer", "Acme", "San Francisco, CA", "2026-02-24") +
		card("4100000011", "ML Engineer", "Globex", "Sacramento, CA", "2026-02-24") + // wrong location
		card("4100000012", "ML Engineer", "Initech", "San Francisco, CA", "2026-01-01") // too old

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/posting/") {
			fmt.Fprintf(w, `<div class="show-more-less-html__markup"><p>Role %s.</p></div>`,
				strings.TrimPrefix(r.URL.Path, "/posting/"))
			return
		}
		if r.URL.Query().Get("start") != "" {
			w.Write([]byte("")) // no further pages
			return
		}
		w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	s := newTestScraper(srv, map[model.Category]CategorySearch{
		"ai": {Keywords: []string{"machine learning engineer"}, ExperienceLevels: []int{2}, Target: 5},
	}, []string{"San Francisco, CA"})

	postings, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting after filtering, got %d", len(postings))
	}

	p := postings[0]
	if p.ID != "4100000010" {
		t.Errorf("expected posting 4100000010, got %s", p.ID)
	}
	if p.Category != "ai" {
		t.Errorf("expected category ai, got %s", p.Category)
	}
	if !strings.Contains(p.Description, "Role 4100000010") {
		t.Errorf("expected description fetched, got %q", p.Description)
	}
}

func TestDiscover_DeduplicatesAcrossQueries(t *testing.T) {
	body := card("4100000020", "Software Engineer", "Acme", "Remote, United States", "2026-02-24")
	var searches int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/posting/") {
			w.Write([]byte(`<div class="show-more-less-html__markup"><p>desc</p></div>`))
			return
		}
		searches++
		w.Write([]byte(body))
	}))
	defer srv.Close()

	s := newTestScraper(srv, map[model.Category]CategorySearch{
		"sde": {Keywords: []string{"software engineer", "backend engineer"}, Target: 5},
	}, []string{"Remote"})

	postings, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if searches < 2 {
		t.Fatalf("expected both keywords searched, got %d searches", searches)
	}
	if len(postings) != 1 {
		t.Fatalf("expected duplicate collapsed to 1 posting, got %d", len(postings))
	}
}

func TestDiscover_AllQueriesFailingIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := newTestScraper(srv, map[model.Category]CategorySearch{
		"ai": {Keywords: []string{"ml engineer"}, Target: 5},
	}, []string{"Remote"})

	_, err := s.Discover(context.Background())
	if err == nil {
		t.Fatal("expected error when every query fails")
	}
}

func TestDiscover_PartialQueryFailureDegrades(t *testing.T) {
	body := card("4100000030", "ML Engineer", "Acme", "Remote, United States", "2026-02-24")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/posting/") {
			w.Write([]byte(`<div class="show-more-less-html__markup"><p>desc</p></div>`))
			return
		}
		if strings.Contains(r.URL.Query().Get("keywords"), "broken") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	s := newTestScraper(srv, map[model.Category]CategorySearch{
		"ai": {Keywords: []string{"broken query", "ml engineer"}, Target: 5},
	}, []string{"Remote"})

	postings, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("expected partial failure to degrade, got error: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting from surviving query, got %d", len(postings))
	}
}

func TestDiscover_DescriptionFetchFailureTolerated(t *testing.T) {
	body := card("4100000040", "ML Engineer", "Acme", "Remote, United States", "2026-02-24")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/posting/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	s := newTestScraper(srv, map[model.Category]CategorySearch{
		"ai": {Keywords: []string{"ml engineer"}, Target: 5},
	}, []string{"Remote"})

	postings, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(postings))
	}
	if postings[0].Description != "" {
		t.Errorf("expected empty description, got %q", postings[0].Description)
	}
}

func TestDiscover_FallbackTopsUpShortfall(t *testing.T) {
	// One fresh card and two cards past the 7-day primary window. The
	// primary pass collects only the fresh one, leaving the category one
	// short of its target of 2.
	body := card("4100000050", "ML Engineer", "Acme", "Remote, United States", "2026-02-24") +
		card("4100000051", "ML Engineer", "Globex", "Remote, United States", "2026-02-01") +
		card("4100000052", "ML Engineer", "Initech", "Remote, United States", "2026-02-01")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/posting/") {
			w.Write([]byte(`<div class="show-more-less-html__markup"><p>desc</p></div>`))
			return
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	s := newTestScraper(srv, map[model.Category]CategorySearch{
		"ai": {Keywords: []string{"ml engineer"}, Target: 2},
	}, []string{"Remote"})
	s.fallbacks = []FallbackStage{{Label: "wider window", MaxDaysOld: 30}}

	postings, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected fallback to top up to the target of 2, got %d", len(postings))
	}
	if postings[0].ID != "4100000050" {
		t.Errorf("expected fresh posting first, got %s", postings[0].ID)
	}
	// The stage stops at the target even though a third card qualifies.
	if postings[1].ID != "4100000051" {
		t.Errorf("expected first fallback posting second, got %s", postings[1].ID)
	}
}

func TestDiscover_NoFallbackWhenTargetMet(t *testing.T) {
	body := card("4100000060", "ML Engineer", "Acme", "Remote, United States", "2026-02-24") +
		card("4100000061", "ML Engineer", "Globex", "Remote, United States", "2026-02-24")

	var searches int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/posting/") {
			w.Write([]byte(`<div class="show-more-less-html__markup"><p>desc</p></div>`))
			return
		}
		searches++
		w.Write([]byte(body))
	}))
	defer srv.Close()

	s := newTestScraper(srv, map[model.Category]CategorySearch{
		"ai": {Keywords: []string{"ml engineer"}, Target: 1},
	}, []string{"Remote"})
	s.fallbacks = []FallbackStage{{Label: "wider window", MaxDaysOld: 30}}

	postings, err := s.Discover(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings from the primary pass, got %d", len(postings))
	}
	if searches != 1 {
		t.Errorf("expected no fallback searches once the target is met, got %d searches", searches)
	}
}

func TestFetchPosting_ParsesTopCardAndDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/posting/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`<section class="top-card-layout">
			<h1 class="top-card-layout__title font-sans text-lg">Machine Learning Engineer</h1>
			<a class="topcard__org-name-link topcard__flavor--black-link" href="#">Acme &amp; Co</a>
			<span class="topcard__flavor topcard__flavor--bullet">San Francisco, CA</span>
		</section>
		<div class="show-more-less-html__markup"><p>Build ML systems.</p></div>`))
	}))
	defer srv.Close()

	s := newTestScraper(srv, map[model.Category]CategorySearch{
		"ai": {Keywords: []string{"ml engineer"}, Target: 1},
	}, []string{"Remote"})

	p, err := s.FetchPosting(context.Background(), "https://www.linkedin.com/jobs/view/ml-engineer-at-acme-4100000070?refId=abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "4100000070" {
		t.Errorf("expected id 4100000070, got %s", p.ID)
	}
	if strings.Contains(p.URL, "?") {
		t.Errorf("expected tracking params stripped from URL, got %s", p.URL)
	}
	if p.Title != "Machine Learning Engineer" {
		t.Errorf("expected title parsed, got %q", p.Title)
	}
	if p.Company != "Acme & Co" {
		t.Errorf("expected company parsed and unescaped, got %q", p.Company)
	}
	if p.Location != "San Francisco, CA" {
		t.Errorf("expected location parsed, got %q", p.Location)
	}
	if !strings.Contains(p.Description, "Build ML systems.") {
		t.Errorf("expected description parsed, got %q", p.Description)
	}
}

func TestFetchPosting_RejectsURLWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for a URL without a posting id")
	}))
	defer srv.Close()

	s := newTestScraper(srv, map[model.Category]CategorySearch{
		"ai": {Keywords: []string{"ml engineer"}, Target: 1},
	}, []string{"Remote"})

	if _, err := s.FetchPosting(context.Background(), "https://www.linkedin.com/jobs"); err == nil {
		t.Fatal("expected error for URL without a posting id")
	}
}

func TestEffectiveKeywords_BoostOnlyForEntryLevel(t *testing.T) {
	cs := CategorySearch{
		Keywords:         []string{"ml engineer"},
		BoostKeywords:    []string{"ml engineer new grad", "ml engineer"},
		ExperienceLevels: []int{2, 3},
	}
	got := effectiveKeywords(cs)
	want := []string{"ml engineer", "ml engineer new grad"}
	if len(got) != len(want) {
		t.Fatalf("expected %d keywords, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	cs.ExperienceLevels = []int{3}
	if got := effectiveKeywords(cs); len(got) != 1 {
		t.Errorf("expected no boost keywords for senior search, got %v", got)
	}
}
