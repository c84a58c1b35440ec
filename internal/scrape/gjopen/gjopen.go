// Package gjopen scrapes Good Judgment Open. The site has no API: listings
// and question details are HTML, and both require a logged-in session
// obtained through a CSRF-token handshake.
package gjopen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vigji/mootlib/internal/logging"
	"github.com/vigji/mootlib/internal/markets"
	"github.com/vigji/mootlib/internal/scrape"
)

const (
	platform = "gjopen"

	defaultBaseURL  = "https://www.gjopen.com"
	defaultMaxPages = 20

	pauseAfterPage = 600 * time.Millisecond
	pauseAfterItem = 700 * time.Millisecond

	reactClass = "FOF.Forecast.PredictionInterfaces.OpinionPoolInterface"
)

// Config carries credentials and optional overrides.
type Config struct {
	Email    string
	Password string
	BaseURL  string
	Timeout  time.Duration
	MaxPages int
	// PageDelay/ItemDelay override the polite-crawl pacing; zero keeps the
	// defaults. Negative disables (tests only).
	PageDelay time.Duration
	ItemDelay time.Duration
}

// Scraper implements scrape.Scraper against gjopen.com.
type Scraper struct {
	cfg  Config
	http *scrape.HTTPClient
}

func New(cfg Config) (*Scraper, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("gjopen: credentials not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.PageDelay == 0 {
		cfg.PageDelay = pauseAfterPage
	}
	if cfg.ItemDelay == 0 {
		cfg.ItemDelay = pauseAfterItem
	}
	return &Scraper{cfg: cfg}, nil
}

func (s *Scraper) Name() string { return platform }

// Open establishes the logged-in session: fetch the sign-in page, lift the
// per-session CSRF token from its meta tags, then post the credentials with
// that token. A response that mentions invalid credentials or lands back on
// the sign-in page is an authentication failure.
func (s *Scraper) Open(ctx context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return &scrape.AuthError{Platform: platform, Err: err}
	}
	timeout := s.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	s.http = &scrape.HTTPClient{
		Platform: platform,
		Client:   &http.Client{Timeout: timeout, Jar: jar},
	}

	loginURL := s.cfg.BaseURL + "/users/sign_in"
	page, err := s.http.GetText(ctx, loginURL)
	if err != nil {
		return &scrape.AuthError{Platform: platform, Err: fmt.Errorf("fetch login page: %w", err)}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return &scrape.AuthError{Platform: platform, Err: err}
	}
	token, ok := doc.Find(`meta[name="csrf-token"]`).Attr("content")
	if !ok || token == "" {
		return &scrape.AuthError{Platform: platform, Err: fmt.Errorf("no csrf token on login page")}
	}

	form := url.Values{
		"user[email]":        {s.cfg.Email},
		"user[password]":     {s.cfg.Password},
		"authenticity_token": {token},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &scrape.AuthError{Platform: platform, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Client.Do(req)
	if err != nil {
		return &scrape.AuthError{Platform: platform, Err: fmt.Errorf("login request: %w", err)}
	}
	defer resp.Body.Close()

	body := new(strings.Builder)
	if _, err := copyLimited(body, resp); err != nil {
		return &scrape.AuthError{Platform: platform, Err: err}
	}
	if strings.Contains(body.String(), "Invalid Email or password") ||
		strings.Contains(resp.Request.URL.Path, "sign_in") {
		return &scrape.AuthError{Platform: platform, Err: fmt.Errorf("credentials rejected")}
	}
	return nil
}

func (s *Scraper) Close() error {
	if s.http != nil {
		s.http.Client.CloseIdleConnections()
		s.http = nil
	}
	return nil
}

// FetchMarkets walks the question listing sorted by forecaster count
// (descending) and fetches each question's detail page. Pagination stops at
// MaxPages, on an empty page, or once a whole page falls below the filter's
// forecaster floor, since deeper pages cannot beat it given the sort order.
func (s *Scraper) FetchMarkets(ctx context.Context, filter markets.MarketFilter) ([]scrape.RawMarket, error) {
	if s.http == nil {
		return nil, &scrape.AuthError{Platform: platform, Err: fmt.Errorf("session not open")}
	}

	var all []scrape.RawMarket
	seen := make(map[string]bool)

	for page := 1; page <= s.cfg.MaxPages; page++ {
		links, err := s.questionLinks(ctx, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			logging.Warnf("[%s] page %d unreachable, stopping: %v", platform, page, err)
			break
		}
		if len(links) == 0 {
			break
		}

		var pageMarkets []*Market
		for i, link := range links {
			m, err := s.questionDetail(ctx, link)
			if err != nil {
				logging.Debugf("[%s] skip %s: %v", platform, link, err)
			} else if m != nil && !seen[m.Question] {
				seen[m.Question] = true
				pageMarkets = append(pageMarkets, m)
			}
			if i < len(links)-1 {
				if err := scrape.Pause(ctx, s.cfg.ItemDelay); err != nil {
					return nil, err
				}
			}
		}

		if len(pageMarkets) == 0 {
			break
		}
		for _, m := range pageMarkets {
			all = append(all, m)
		}

		if belowFloor(pageMarkets, filter.MinForecasters) {
			break
		}
		if err := scrape.Pause(ctx, s.cfg.PageDelay); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// belowFloor reports whether every market on the page is under the
// forecaster floor. The listing is sorted by forecaster count descending, so
// a fully-under-floor page means nothing deeper qualifies either.
func belowFloor(page []*Market, minForecasters int) bool {
	if minForecasters <= 0 {
		return false
	}
	for _, m := range page {
		if m.PredictorsCount >= minForecasters {
			return false
		}
	}
	return true
}

func (s *Scraper) questionLinks(ctx context.Context, page int) ([]string, error) {
	u := fmt.Sprintf("%s/questions?sort=predictors_count&sort_dir=desc&page=%d", s.cfg.BaseURL, page)
	body, err := s.http.GetText(ctx, u)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &scrape.ParseError{Platform: platform, ID: u, Err: err}
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find(`a[href]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !questionPathRe.MatchString(href) {
			return
		}
		abs := href
		if strings.HasPrefix(href, "/") {
			abs = s.cfg.BaseURL + href
		}
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})
	return links, nil
}

func (s *Scraper) questionDetail(ctx context.Context, questionURL string) (*Market, error) {
	body, err := s.http.GetText(ctx, questionURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &scrape.ParseError{Platform: platform, ID: questionURL, Err: err}
	}

	props, ok := doc.Find(fmt.Sprintf(`div[data-react-class=%q]`, reactClass)).Attr("data-react-props")
	if !ok {
		// Continuous-scored and closed questions render a different
		// interface; they are not poolable.
		return nil, nil
	}

	var payload reactProps
	if err := json.Unmarshal([]byte(props), &payload); err != nil {
		return nil, &scrape.ParseError{Platform: platform, ID: questionURL, Err: err}
	}
	q := payload.Question
	if q.ID == 0 || q.Name == "" {
		return nil, nil
	}

	m := &Market{
		ID:              q.ID,
		Question:        q.Name,
		PublishedAt:     q.PublishedAt,
		PredictorsCount: q.PredictorsCount,
		CommentsCount:   q.CommentsCount,
		Type:            q.Type,
		URL:             questionURL,
	}
	for _, a := range q.Answers {
		m.Answers = append(m.Answers, Answer{Name: a.Name, Probability: a.Probability})
	}
	return m, nil
}
