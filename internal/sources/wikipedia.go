package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"datedriven/internal/common/config"
	httpclient "datedriven/internal/common/http"
	"datedriven/internal/keydates"
)

// WikipediaSource reads the REST page summary for an item's subject. It serves
// as a ContextProvider for the model backends and as a source in its own right,
// proposing birth and death dates found in the summary's lifespan.
type WikipediaSource struct {
	base

	// pages remembers recent lookups so the context pass and the query pass of
	// one item share a single request.
	mu    sync.Mutex
	pages map[string]wikiPage
	now   func() time.Time
}

type wikiPage struct {
	summary   *wikiSummary
	err       error
	fetchedAt time.Time
}

const (
	pageMemoTTL  = 5 * time.Minute
	pageMemoSize = 256
)

func NewWikipediaSource(cfg config.SourceConfig, client *httpclient.Client) *WikipediaSource {
	return &WikipediaSource{
		base:  newBase("wikipedia", cfg, client),
		pages: make(map[string]wikiPage),
		now:   time.Now,
	}
}

type wikiSummary struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	Type    string `json:"type"`
}

const (
	monthNames = `January|February|March|April|May|June|July|August|September|October|November|December`
	mdyDate    = `(?:` + monthNames + `)\s+\d{1,2},\s+\d{4}`
	dmyDate    = `\d{1,2}\s+(?:` + monthNames + `)\s+\d{4}`
	anyDate    = `(` + mdyDate + `|` + dmyDate + `)`
)

var (
	lifespanPattern = regexp.MustCompile(anyDate + `\s*[–—-]\s*` + anyDate)
	bornPattern     = regexp.MustCompile(`(?i)\bborn\b[^()]*?` + anyDate)
)

// fetch returns the page summary, reusing a recent answer for the same title.
// Only successes and missing pages are remembered.
func (s *WikipediaSource) fetch(ctx context.Context, subject string) (*wikiSummary, error) {
	title := url.PathEscape(strings.ReplaceAll(strings.TrimSpace(subject), " ", "_"))

	s.mu.Lock()
	page, ok := s.pages[title]
	s.mu.Unlock()
	if ok && s.now().Sub(page.fetchedAt) < pageMemoTTL {
		return page.summary, page.err
	}

	summary, err := s.request(ctx, title)
	if err == nil || httpclient.NotFound(err) {
		s.mu.Lock()
		if len(s.pages) >= pageMemoSize {
			s.pages = make(map[string]wikiPage)
		}
		s.pages[title] = wikiPage{summary: summary, err: err, fetchedAt: s.now()}
		s.mu.Unlock()
	}
	return summary, err
}

func (s *WikipediaSource) request(ctx context.Context, title string) (*wikiSummary, error) {
	endpoint := fmt.Sprintf("%s/page/summary/%s", strings.TrimRight(s.cfg.BaseURL, "/"), title)

	var summary wikiSummary
	err := s.http.DoJSON(ctx, http.MethodGet, endpoint, map[string]string{
		"User-Agent": "datedriven/1.0 (key date discovery)",
	}, nil, &summary)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Summary implements keydates.ContextProvider. A missing page yields "".
func (s *WikipediaSource) Summary(ctx context.Context, subject string) (string, error) {
	summary, err := s.fetch(ctx, subject)
	if httpclient.NotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", s.classify(err)
	}
	if summary.Type == "disambiguation" {
		return "", nil
	}
	return summary.Extract, nil
}

// Query proposes "<Title> Birthday" and "<Title> Death Anniversary" from the
// summary. Pages without a recognisable lifespan produce no candidates.
func (s *WikipediaSource) Query(ctx context.Context, item keydates.Item) ([]keydates.Candidate, error) {
	if item.Subject == "" {
		return nil, nil
	}
	summary, err := s.fetch(ctx, item.Subject)
	if httpclient.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, s.classify(err)
	}
	if summary.Type == "disambiguation" {
		return nil, nil
	}
	title := summary.Title
	if title == "" {
		title = item.Subject
	}
	return lifespanCandidates(s.id, title, summary.Extract), nil
}

func lifespanCandidates(source, title, extract string) []keydates.Candidate {
	var out []keydates.Candidate
	add := func(label, raw string) {
		if date, err := keydates.ParseMonthDay(raw); err == nil {
			out = append(out, keydates.Candidate{
				Label:    label,
				Date:     date,
				Source:   source,
				Category: keydates.CategoryKey,
			})
		}
	}

	if m := lifespanPattern.FindStringSubmatch(extract); m != nil {
		add(title+" Birthday", m[1])
		add(title+" Death Anniversary", m[2])
		return out
	}
	if m := bornPattern.FindStringSubmatch(extract); m != nil {
		add(title+" Birthday", m[1])
	}
	return out
}
