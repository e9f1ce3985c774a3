package scraper

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/amishk599/openjob/internal/model"
)

// jobCard holds the fields extracted from one search result card.
type jobCard struct {
	id       string
	url      string
	title    string
	company  string
	location string
	postedAt *time.Time
}

// The guest search API returns an HTML fragment of <li> job cards. Class
// names have been stable for years; the patterns below tolerate extra
// classes and attributes around them.
var (
	cardPattern     = regexp.MustCompile(`(?s)<li>.*?</li>`)
	linkPattern     = regexp.MustCompile(`<a[^>]*base-card__full-link[^>]*>`)
	hrefPattern     = regexp.MustCompile(`href="([^"]+)"`)
	titlePattern    = regexp.MustCompile(`(?s)<h3[^>]*base-search-card__title[^>]*>(.*?)</h3>`)
	companyPattern  = regexp.MustCompile(`(?s)<h4[^>]*base-search-card__subtitle[^>]*>(.*?)</h4>`)
	locationPattern = regexp.MustCompile(`(?s)<span[^>]*job-search-card__location[^>]*>(.*?)</span>`)
	datetimePattern = regexp.MustCompile(`<time[^>]*datetime="([^"]+)"`)

	topTitlePattern    = regexp.MustCompile(`(?s)<h[12][^>]*top-card-layout__title[^>]*>(.*?)</h[12]>`)
	topCompanyPattern  = regexp.MustCompile(`(?s)<a[^>]*topcard__org-name-link[^>]*>(.*?)</a>`)
	topLocationPattern = regexp.MustCompile(`(?s)<span[^>]*topcard__flavor--bullet[^>]*>(.*?)</span>`)

	descriptionPattern = regexp.MustCompile(`(?s)<div[^>]*show-more-less-html__markup[^>]*>(.*?)</div>`)
	blockBreakPattern  = regexp.MustCompile(`(?i)</(p|li|ul|ol|div|h[1-6])>|<br\s*/?>`)
	tagPattern         = regexp.MustCompile(`<[^>]+>`)
	blankLinesPattern  = regexp.MustCompile(`\n{3,}`)
)

// parseCards extracts all job cards from a search result fragment. Cards
// missing a URL or title are dropped.
func parseCards(body string) []jobCard {
	var cards []jobCard
	for _, chunk := range cardPattern.FindAllString(body, -1) {
		c, ok := parseCard(chunk)
		if !ok {
			continue
		}
		cards = append(cards, c)
	}
	return cards
}

func parseCard(chunk string) (jobCard, bool) {
	var c jobCard

	link := linkPattern.FindString(chunk)
	if link == "" {
		return c, false
	}
	href := hrefPattern.FindStringSubmatch(link)
	if href == nil {
		return c, false
	}
	c.url = canonicalURL(html.UnescapeString(href[1]))
	c.id = model.PostingIDFromURL(c.url)

	c.title = innerText(titlePattern, chunk)
	c.company = innerText(companyPattern, chunk)
	c.location = innerText(locationPattern, chunk)
	if c.id == "" || c.title == "" {
		return c, false
	}

	if m := datetimePattern.FindStringSubmatch(chunk); m != nil {
		if t, err := parseCardDate(m[1]); err == nil {
			c.postedAt = &t
		}
	}
	return c, true
}

// topCard holds the header fields of a posting page.
type topCard struct {
	title    string
	company  string
	location string
}

// parseTopCard extracts the title, company, and location from a posting
// page's top card. Missing fields come back empty; the caller decides what
// to do without them.
func parseTopCard(body string) topCard {
	return topCard{
		title:    innerText(topTitlePattern, body),
		company:  innerText(topCompanyPattern, body),
		location: innerText(topLocationPattern, body),
	}
}

// parseDescription extracts the plain-text job description from a posting
// page, preserving paragraph breaks.
func parseDescription(body string) string {
	m := descriptionPattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	text := blockBreakPattern.ReplaceAllString(m[1], "\n")
	text = tagPattern.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// canonicalURL strips tracking query parameters so the same posting always
// maps to the same URL.
func canonicalURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

func innerText(re *regexp.Regexp, chunk string) string {
	m := re.FindStringSubmatch(chunk)
	if m == nil {
		return ""
	}
	text := tagPattern.ReplaceAllString(m[1], "")
	return strings.TrimSpace(html.UnescapeString(text))
}

func parseCardDate(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
