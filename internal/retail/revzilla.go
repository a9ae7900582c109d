package retail

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

const (
	revzillaBaseURL   = "https://www.revzilla.com"
	revzillaUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	revzillaMaxBody   = 4 << 20
	defaultMaxResults = 10
)

// selectorSet describes where a product tile and its fields live in the
// result page. Each field lists class names tried in order.
type selectorSet struct {
	tile    func(*html.Node) bool
	name    []string
	brand   []string
	price   []string
	rating  []string
	reviews []string
	stock   []string
}

var (
	primarySelectors = selectorSet{
		tile:    hasClassFunc("product-tile", "product-index-results__product-tile"),
		name:    []string{"product-tile__name", "product-tile__title"},
		brand:   []string{"product-tile__brand"},
		price:   []string{"product-tile__price-retail", "product-tile__price", "product-price__retail"},
		rating:  []string{"product-tile__rating", "rating-stars"},
		reviews: []string{"product-tile__review-count", "product-tile__reviews"},
		stock:   []string{"product-tile__stock", "product-tile__availability"},
	}

	// Used when the primary set finds no tiles, e.g. after a page redesign.
	alternateSelectors = selectorSet{
		tile: func(n *html.Node) bool {
			return attr(n, "data-product-id") != "" || hasClass(n, "product-card")
		},
		name:    []string{"product-card__name", "product-card__title", "product-name"},
		brand:   []string{"product-card__brand", "product-brand"},
		price:   []string{"product-card__price", "price"},
		rating:  []string{"product-card__rating", "rating"},
		reviews: []string{"product-card__reviews", "review-count"},
		stock:   []string{"product-card__stock", "availability"},
	}

	priceRE  = regexp.MustCompile(`\$?\s*(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`)
	ratingRE = regexp.MustCompile(`(\d(?:\.\d+)?)`)
	countRE  = regexp.MustCompile(`(\d[\d,]*)`)
)

// RevZillaConfig configures the RevZilla tool. Zero values pick defaults.
type RevZillaConfig struct {
	BaseURL    string
	Client     *http.Client
	Cache      Cache
	MaxResults int
}

// RevZilla scrapes the RevZilla search results page. It serves motorcycles
// only and never applies fitment filters.
type RevZilla struct {
	baseURL string
	client  *http.Client
	cache   Cache
	max     int
}

// NewRevZilla builds the tool. Without a cache it uses a MemoryCache with the
// default TTL.
func NewRevZilla(cfg RevZillaConfig) *RevZilla {
	t := &RevZilla{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  cfg.Client,
		cache:   cfg.Cache,
		max:     cfg.MaxResults,
	}
	if t.baseURL == "" {
		t.baseURL = revzillaBaseURL
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 15 * time.Second}
	}
	if t.cache == nil {
		t.cache = NewMemoryCache(DefaultCacheTTL, 256)
	}
	if t.max <= 0 {
		t.max = defaultMaxResults
	}
	return t
}

func (t *RevZilla) Name() string                { return "revzilla_search" }
func (t *RevZilla) RetailerName() string        { return "RevZilla" }
func (t *RevZilla) VehicleTypes() []VehicleType { return []VehicleType{Motorcycle} }

// SearchURL returns the results page URL for a free-text query.
func (t *RevZilla) SearchURL(query string) string {
	return t.baseURL + "/search?query=" + url.QueryEscape(strings.TrimSpace(query))
}

// Search fetches and parses the result page. Network failures, non-2xx
// responses and unparseable pages are logged and yield an empty result with
// a nil error.
func (t *RevZilla) Search(ctx context.Context, p SearchParams) ([]Product, error) {
	lg := zerolog.Ctx(ctx).With().Str("tool", t.Name()).Str("query", p.Query).Logger()
	if strings.TrimSpace(p.Query) == "" {
		return []Product{}, nil
	}

	key := CacheKey(t.Name(), p)
	if cached, ok := t.cache.Get(ctx, key); ok {
		return limitProducts(cached, p.Limit, t.max), nil
	}

	body, err := t.fetch(ctx, t.SearchURL(p.Query))
	if err != nil {
		lg.Warn().Err(err).Msg("revzilla fetch failed")
		return []Product{}, nil
	}
	defer body.Close()

	doc, err := html.Parse(io.LimitReader(body, revzillaMaxBody))
	if err != nil {
		lg.Warn().Err(err).Msg("revzilla parse failed")
		return []Product{}, nil
	}

	products := t.extract(doc, primarySelectors)
	if len(products) == 0 {
		products = t.extract(doc, alternateSelectors)
	}
	if len(products) == 0 {
		lg.Info().Msg("revzilla returned no products")
		return []Product{}, nil
	}

	t.cache.Set(ctx, key, products)
	return limitProducts(products, p.Limit, t.max), nil
}

func (t *RevZilla) fetch(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", revzillaUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (t *RevZilla) extract(doc *html.Node, sel selectorSet) []Product {
	var out []Product
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && sel.tile(n) {
			if p, ok := t.product(n, sel); ok {
				out = append(out, p)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

// product reads one tile. Only the name is required; every other field is
// best effort.
func (t *RevZilla) product(tile *html.Node, sel selectorSet) (Product, bool) {
	p := Product{Retailer: t.RetailerName(), FitmentVerified: false}

	p.Name = firstNonEmpty(
		attr(tile, "data-product-name"),
		textByClass(tile, sel.name...),
		attr(findElement(tile, "img"), "alt"),
	)
	if p.Name == "" {
		return Product{}, false
	}
	p.Brand = firstNonEmpty(attr(tile, "data-brand"), textByClass(tile, sel.brand...))

	if v, ok := parsePrice(firstNonEmpty(attr(tile, "data-price"), textByClass(tile, sel.price...))); ok {
		p.Price = &v
	}
	if v, ok := parseRating(firstNonEmpty(attr(tile, "data-rating"), attrByClass(tile, "aria-label", sel.rating...), textByClass(tile, sel.rating...))); ok {
		p.Rating = &v
	}
	if v, ok := parseCount(textByClass(tile, sel.reviews...)); ok {
		p.ReviewCount = &v
	}
	if s := strings.ToLower(textByClass(tile, sel.stock...)); s != "" {
		in := !strings.Contains(s, "out of stock") && !strings.Contains(s, "unavailable")
		p.InStock = &in
	}

	a := tile
	if a.Data != "a" {
		a = findElement(tile, "a")
	}
	if a != nil {
		p.URL = t.absolute(attr(a, "href"))
	}
	if img := findElement(tile, "img"); img != nil {
		p.ImageURL = t.absolute(firstNonEmpty(attr(img, "src"), attr(img, "data-src")))
	}
	return p, true
}

func (t *RevZilla) absolute(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	base, err := url.Parse(t.baseURL + "/")
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func limitProducts(in []Product, want, max int) []Product {
	n := max
	if want > 0 && want < n {
		n = want
	}
	if len(in) > n {
		in = in[:n]
	}
	return in
}

func parsePrice(s string) (float64, bool) {
	m := priceRE.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func parseRating(s string) (float64, bool) {
	m := ratingRE.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 || v > 5 {
		return 0, false
	}
	return v, true
}

func parseCount(s string) (int, bool) {
	m := countRE.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return v, true
}

// DOM helpers.

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
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

func hasClassFunc(classes ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, c := range classes {
			if hasClass(n, c) {
				return true
			}
		}
		return false
	}
}

func findElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func findByClass(n *html.Node, class string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && hasClass(c, class) {
			return c
		}
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func textByClass(n *html.Node, classes ...string) string {
	for _, class := range classes {
		if el := findByClass(n, class); el != nil {
			if s := textContent(el); s != "" {
				return s
			}
		}
	}
	return ""
}

func attrByClass(n *html.Node, key string, classes ...string) string {
	for _, class := range classes {
		if v := attr(findByClass(n, class), key); v != "" {
			return v
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
