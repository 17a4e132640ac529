package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultTreasuryURL lists the Treasury's auction announcements.
const DefaultTreasuryURL = "https://www.argentina.gob.ar/economia/finanzas/licitaciones-de-letras-y-bonos-del-tesoro"

const maxArticles = 10

// TreasuryScraper reads auction announcements from the Treasury news page.
type TreasuryScraper struct {
	pageURL      string
	client       *http.Client
	log          zerolog.Logger
	loc          *time.Location
	fetchDetails bool
}

// ScraperOption customizes a TreasuryScraper.
type ScraperOption func(*TreasuryScraper)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) ScraperOption {
	return func(s *TreasuryScraper) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLocation sets the zone auction dates are expressed in.
func WithLocation(loc *time.Location) ScraperOption {
	return func(s *TreasuryScraper) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithDetails makes the scraper follow each upcoming announcement to read its schedule and maturities.
func WithDetails(enabled bool) ScraperOption {
	return func(s *TreasuryScraper) { s.fetchDetails = enabled }
}

// NewTreasuryScraper builds a scraper for pageURL (DefaultTreasuryURL when empty).
func NewTreasuryScraper(pageURL string, log zerolog.Logger, opts ...ScraperOption) *TreasuryScraper {
	if pageURL == "" {
		pageURL = DefaultTreasuryURL
	}
	s := &TreasuryScraper{
		pageURL: pageURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
		loc:     time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpcomingEvents implements Source. Articles that cannot be parsed are skipped.
func (s *TreasuryScraper) UpcomingEvents(ctx context.Context, now time.Time, horizonDays int) ([]Event, error) {
	doc, err := s.fetch(ctx, s.pageURL)
	if err != nil {
		return nil, fmt.Errorf("treasury calendar: %w", err)
	}
	base, _ := url.Parse(s.pageURL)

	articles := findAll(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Article && hasClass(n, "node-noticia")
	})
	if len(articles) > maxArticles {
		articles = articles[:maxArticles]
	}

	var events []Event
	for _, article := range articles {
		ev, ok := parseArticle(article, base, now, s.loc)
		if !ok || !Upcoming(ev.Date, now, horizonDays) {
			continue
		}
		if s.fetchDetails && ev.URL != "" {
			if err := s.enrich(ctx, &ev); err != nil {
				s.log.Warn().Err(err).Str("url", ev.URL).Msg("auction details unavailable")
			}
		}
		events = append(events, ev)
	}
	sortEvents(events)
	s.log.Info().Int("events", len(events)).Int("horizon_days", horizonDays).Msg("treasury calendar scraped")
	return events, nil
}

// enrich reads the announcement page for instruments, auction hours, and maturities.
func (s *TreasuryScraper) enrich(ctx context.Context, ev *Event) error {
	doc, err := s.fetch(ctx, ev.URL)
	if err != nil {
		return err
	}
	content := findFirst(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Div && hasClass(n, "node-body")
	})
	if content == nil {
		content = findFirst(doc, func(n *html.Node) bool { return n.DataAtom == atom.Article })
	}
	if content == nil {
		return fmt.Errorf("announcement body not found")
	}
	text := textContent(content)
	ev.Instruments = uniqueSorted(append(ev.Instruments, extractInstruments(text)...))
	if ev.MaturitiesARS == 0 {
		ev.MaturitiesARS = extractMaturities(text)
	}
	ev.Opens = extractClock(text, openingWords)
	ev.Closes = extractClock(text, closingWords)
	return nil
}

func (s *TreasuryScraper) fetch(ctx context.Context, target string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; licitacion-go/1.0)")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func parseArticle(article *html.Node, base *url.URL, now time.Time, loc *time.Location) (Event, bool) {
	heading := findFirst(article, func(n *html.Node) bool { return n.DataAtom == atom.H3 })
	if heading == nil {
		heading = findFirst(article, func(n *html.Node) bool { return n.DataAtom == atom.H2 })
	}
	if heading == nil {
		return Event{}, false
	}
	title := collapseSpace(textContent(heading))
	if !isAnnouncement(title) {
		return Event{}, false
	}
	body := textContent(article)

	date, ok := extractDate(title, now, loc)
	if !ok {
		date, ok = extractDate(body, now, loc)
	}
	if !ok {
		return Event{}, false
	}

	ev := Event{
		Date:          date,
		Title:         title,
		Instruments:   extractInstruments(title + " " + body),
		MaturitiesARS: extractMaturities(body),
	}
	link := findFirst(heading, isAnchor)
	if link == nil {
		link = findFirst(article, isAnchor)
	}
	if link != nil {
		ev.URL = resolveLink(base, attr(link, "href"))
	}
	return ev, true
}

func isAnchor(n *html.Node) bool {
	return n.DataAtom == atom.A && attr(n, "href") != ""
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root.Type == html.ElementNode && match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// textContent joins every text node under n with spaces.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
