package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/openjob/internal/model"
	"github.com/amishk599/openjob/internal/ratelimit"
)

const (
	guestSearchURL  = "https://www.linkedin.com/jobs-guest/jobs/api/seeMoreJobPostings/search"
	guestPostingURL = "https://www.linkedin.com/jobs-guest/jobs/api/jobPosting"

	maxPagesPerSearch = 3  // pages to paginate per search query
	cardsPerPage      = 25 // LinkedIn shows ~25 cards per page
	limiterHost       = "linkedin"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// CategorySearch describes the search queries for one posting category.
type CategorySearch struct {
	Keywords         []string
	BoostKeywords    []string // added for entry-level searches (exp level 2)
	ExperienceLevels []int
	Target           int
}

// FallbackStage relaxes the search for categories that fell short of their
// target. Stages run in order; each one only tops up the remaining shortfall.
type FallbackStage struct {
	Label            string
	MaxDaysOld       int                      // 0 = any age
	ExperienceLevels map[model.Category][]int // per-category overrides, nil = keep defaults
}

// LinkedInScraper discovers postings from the LinkedIn guest search API
// (no login required).
type LinkedInScraper struct {
	client        *http.Client
	limiter       *ratelimit.HostLimiter
	categories    map[model.Category]CategorySearch
	locations     []string
	maxDaysOld    int // 0 = any age
	maxCandidates int
	fallbacks     []FallbackStage
	logger        *slog.Logger
	now           func() time.Time

	// endpoint bases, overridable in tests
	searchBase  string
	postingBase string
}

// Ensure LinkedInScraper implements model.Scraper.
var _ model.Scraper = (*LinkedInScraper)(nil)

// NewLinkedInScraper creates a scraper over the given search plan. All page
// fetches share the limiter so pagination stays paced.
func NewLinkedInScraper(
	client *http.Client,
	limiter *ratelimit.HostLimiter,
	categories map[model.Category]CategorySearch,
	locations []string,
	maxDaysOld int,
	maxCandidates int,
	fallbacks []FallbackStage,
	logger *slog.Logger,
) *LinkedInScraper {
	return &LinkedInScraper{
		client:        client,
		limiter:       limiter,
		categories:    categories,
		locations:     locations,
		maxDaysOld:    maxDaysOld,
		maxCandidates: maxCandidates,
		fallbacks:     fallbacks,
		logger:        logger,
		now:           time.Now,
		searchBase:    guestSearchURL,
		postingBase:   guestPostingURL,
	}
}

// searchQuery is one (keyword, location) pair of the search plan.
type searchQuery struct {
	keyword   string
	location  string
	expLevels []int
	category  model.Category
}

// Discover runs the full search plan: collect job cards per query with
// pagination and early stopping, run any configured fallback stages for
// categories still short of their target, then fetch each candidate's
// description. It fails only when no query could be completed at all;
// partial query failures degrade to fewer candidates.
func (s *LinkedInScraper) Discover(ctx context.Context) ([]model.Posting, error) {
	plan := s.buildPlan(nil, nil)
	s.logger.Info("searching linkedin", "queries", len(plan))

	var (
		candidates []model.Posting
		perCat     = make(map[model.Category]int)
		ids        = make(map[string]bool)
		firstErr   error
	)

	// Primary pass keeps 2x target per category as failure headroom, the
	// orchestrator caps successes at the target.
	caps := make(map[model.Category]int, len(s.categories))
	for cat, cs := range s.categories {
		caps[cat] = 2 * cs.Target
	}
	if err := s.collect(ctx, plan, s.maxDaysOld, caps, ids, perCat, &candidates, &firstErr); err != nil {
		return nil, err
	}

	// Fallback stages widen the search for categories the primary pass left
	// short. Each stage only tops those categories up to their target.
	for _, stage := range s.fallbacks {
		short := s.shortCategories(perCat)
		if len(short) == 0 {
			break
		}
		s.logger.Warn("search fallback engaged", "stage", stage.Label, "short_categories", len(short))

		stageCaps := make(map[model.Category]int, len(short))
		for cat := range short {
			stageCaps[cat] = s.categories[cat].Target
		}
		stagePlan := s.buildPlan(short, stage.ExperienceLevels)
		if err := s.collect(ctx, stagePlan, stage.MaxDaysOld, stageCaps, ids, perCat, &candidates, &firstErr); err != nil {
			return nil, err
		}
	}

	if len(candidates) == 0 && firstErr != nil {
		return nil, fmt.Errorf("linkedin search: %w", firstErr)
	}

	s.logger.Info("card collection complete", "candidates", len(candidates))

	// Second pass: pull the full description for each candidate. A failed
	// fetch leaves the description empty; the drafter tolerates that.
	for i := range candidates {
		desc, err := s.fetchDescription(ctx, candidates[i].ID)
		if err != nil {
			s.logger.Warn("description fetch failed", "posting", candidates[i].ID, "error", err)
			continue
		}
		candidates[i].Description = desc
	}

	return candidates, nil
}

// FetchPosting pulls one posting's title, company, location, and description
// straight from its public page. Single-URL retries use this when the caller
// supplied nothing beyond the URL.
func (s *LinkedInScraper) FetchPosting(ctx context.Context, rawURL string) (model.Posting, error) {
	id := model.PostingIDFromURL(rawURL)
	if id == "" {
		return model.Posting{}, fmt.Errorf("no posting id in %q", rawURL)
	}

	body, err := s.fetchPage(ctx, s.postingBase+"/"+id)
	if err != nil {
		return model.Posting{}, fmt.Errorf("fetching posting %s: %w", id, err)
	}

	card := parseTopCard(body)
	return model.Posting{
		ID:          id,
		URL:         canonicalURL(rawURL),
		Title:       card.title,
		Company:     card.company,
		Location:    card.location,
		Description: parseDescription(body),
	}, nil
}

// collect runs the given queries, appending filtered postings until each
// category reaches its cap (0 = unlimited) or the global candidate limit is
// hit. Query errors are recorded in firstErr and degrade to fewer results;
// only context cancellation aborts.
func (s *LinkedInScraper) collect(
	ctx context.Context,
	plan []searchQuery,
	maxDaysOld int,
	caps map[model.Category]int,
	ids map[string]bool,
	perCat map[model.Category]int,
	candidates *[]model.Posting,
	firstErr *error,
) error {
	for _, q := range plan {
		if ctx.Err() != nil {
			return fmt.Errorf("linkedin search: %w", ctx.Err())
		}
		if len(*candidates) >= s.maxCandidates {
			break
		}
		if limit := caps[q.category]; limit > 0 && perCat[q.category] >= limit {
			continue
		}

		found, err := s.runQuery(ctx, q, maxDaysOld, ids)
		if err != nil {
			s.logger.Warn("search query failed",
				"keyword", q.keyword,
				"location", q.location,
				"error", err,
			)
			if *firstErr == nil {
				*firstErr = err
			}
			continue
		}

		for _, p := range found {
			if len(*candidates) >= s.maxCandidates {
				break
			}
			if limit := caps[q.category]; limit > 0 && perCat[q.category] >= limit {
				break
			}
			*candidates = append(*candidates, p)
			perCat[q.category]++
		}
	}
	return nil
}

// shortCategories returns the categories whose collected count is still
// below their configured target.
func (s *LinkedInScraper) shortCategories(perCat map[model.Category]int) map[model.Category]bool {
	short := make(map[model.Category]bool)
	for cat, cs := range s.categories {
		if cs.Target > 0 && perCat[cat] < cs.Target {
			short[cat] = true
		}
	}
	return short
}

// buildPlan expands the configured categories into concrete search queries,
// in stable category order so discovery order is reproducible. When only is
// non-nil, categories outside it are skipped; expOverrides replaces a
// category's experience levels for this plan.
func (s *LinkedInScraper) buildPlan(only map[model.Category]bool, expOverrides map[model.Category][]int) []searchQuery {
	names := make([]string, 0, len(s.categories))
	for cat := range s.categories {
		names = append(names, string(cat))
	}
	sort.Strings(names)

	var plan []searchQuery
	for _, name := range names {
		cat := model.Category(name)
		if only != nil && !only[cat] {
			continue
		}
		cs := s.categories[cat]
		if levels, ok := expOverrides[cat]; ok {
			cs.ExperienceLevels = levels
		}
		for _, kw := range effectiveKeywords(cs) {
			for _, loc := range s.locations {
				plan = append(plan, searchQuery{
					keyword:   kw,
					location:  loc,
					expLevels: cs.ExperienceLevels,
					category:  cat,
				})
			}
		}
	}
	return plan
}

// effectiveKeywords adds boost keywords (e.g. "new grad") for entry-level
// searches, de-duplicated while preserving order.
func effectiveKeywords(cs CategorySearch) []string {
	kws := append([]string(nil), cs.Keywords...)
	for _, lvl := range cs.ExperienceLevels {
		if lvl == 2 {
			kws = append(kws, cs.BoostKeywords...)
			break
		}
	}
	seen := make(map[string]bool, len(kws))
	out := kws[:0]
	for _, kw := range kws {
		if !seen[kw] {
			seen[kw] = true
			out = append(out, kw)
		}
	}
	return out
}

// runQuery paginates one search query and returns the new, filtered postings.
func (s *LinkedInScraper) runQuery(ctx context.Context, q searchQuery, maxDaysOld int, ids map[string]bool) ([]model.Posting, error) {
	var found []model.Posting

	for page := 0; page < maxPagesPerSearch; page++ {
		body, err := s.fetchPage(ctx, s.searchURL(q, page*cardsPerPage))
		if err != nil {
			if page == 0 {
				return nil, err
			}
			// Later pages failing just ends pagination for this query.
			s.logger.Debug("pagination stopped", "page", page+1, "error", err)
			break
		}

		cards := parseCards(body)
		added := 0
		for _, c := range cards {
			if ids[c.id] {
				continue
			}
			if !locationMatch(c.location, q.location) {
				continue
			}
			if s.tooOld(c.postedAt, maxDaysOld) {
				continue
			}
			ids[c.id] = true
			found = append(found, model.Posting{
				ID:       c.id,
				URL:      c.url,
				Title:    c.title,
				Company:  c.company,
				Location: c.location,
				Category: q.category,
				PostedAt: c.postedAt,
			})
			added++
		}

		s.logger.Debug("search page parsed",
			"keyword", q.keyword,
			"page", page+1,
			"cards", len(cards),
			"new", added,
		)

		// A short page means the result set is exhausted.
		if len(cards) < cardsPerPage*4/5 {
			break
		}
	}

	return found, nil
}

func (s *LinkedInScraper) searchURL(q searchQuery, start int) string {
	exp := make([]string, len(q.expLevels))
	for i, e := range q.expLevels {
		exp[i] = strconv.Itoa(e)
	}

	v := url.Values{}
	v.Set("keywords", q.keyword)
	v.Set("location", q.location)
	if len(exp) > 0 {
		v.Set("f_E", strings.Join(exp, ","))
	}
	v.Set("sortBy", "DD")
	if start > 0 {
		v.Set("start", strconv.Itoa(start))
	}
	return s.searchBase + "?" + v.Encode()
}

// fetchPage performs one rate-limited GET and returns the response body.
func (s *LinkedInScraper) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := s.limiter.Wait(ctx, limiterHost); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(body), nil
}

// fetchDescription pulls the full posting page and extracts the description text.
func (s *LinkedInScraper) fetchDescription(ctx context.Context, postingID string) (string, error) {
	body, err := s.fetchPage(ctx, s.postingBase+"/"+postingID)
	if err != nil {
		return "", err
	}
	return parseDescription(body), nil
}

func (s *LinkedInScraper) tooOld(postedAt *time.Time, maxDaysOld int) bool {
	if maxDaysOld <= 0 || postedAt == nil {
		return false
	}
	age := s.now().Sub(*postedAt)
	return age > time.Duration(maxDaysOld)*24*time.Hour
}

// locationMatch applies a strict location filter: LinkedIn often returns
// broad nearby results the user did not ask for.
func locationMatch(jobLocation, queryLocation string) bool {
	jl := strings.ToLower(jobLocation)
	ql := strings.ToLower(queryLocation)

	if jl == "" {
		return false
	}

	// Remote query: only keep remote-labeled postings.
	if strings.Contains(ql, "remote") {
		return strings.Contains(jl, "remote")
	}

	// City query: require the city token (e.g. "san francisco").
	city := strings.TrimSpace(strings.SplitN(ql, ",", 2)[0])
	return strings.Contains(jl, city)
}

func parseRetryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
