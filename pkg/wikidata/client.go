// Package wikidata queries the Wikidata SPARQL endpoint for medicinal
// product identifiers.
package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultEndpoint  = "https://query.wikidata.org/sparql"
	defaultUserAgent = "meds-job/1.0 (medicinal product research)"
	defaultLanguage  = "en"
	resultLimit      = 25
)

// Wikidata properties used by the lookups.
const (
	PropSNOMED   = "P5806"
	PropDrugBank = "P715"
	PropATC      = "P267"
	PropRxNorm   = "P3345"
)

// ErrStatus is wrapped by errors for non-200 endpoint replies.
var ErrStatus = eris.New("wikidata: unexpected status")

// ErrDecode is wrapped when the endpoint reply is not SPARQL JSON.
var ErrDecode = eris.New("wikidata: decode response")

// Entity is one Wikidata item with the identifiers it carries.
type Entity struct {
	URI        string
	Label      string
	DrugBankID []string
	ATCCodes   []string
	RxNorm     []string
}

// Client looks up entities by SNOMED CT code or by English label.
type Client interface {
	BySNOMED(ctx context.Context, code string) ([]Entity, error)
	ByLabel(ctx context.Context, label string) ([]Entity, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithEndpoint overrides the SPARQL endpoint URL.
func WithEndpoint(u string) Option {
	return func(c *httpClient) { c.endpoint = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps requests per second. Zero or less disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithUserAgent sets the User-Agent header, which the public endpoint
// requires.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) { c.userAgent = ua }
}

type httpClient struct {
	endpoint  string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a SPARQL client limited to one request per second by
// default.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		endpoint:  defaultEndpoint,
		userAgent: defaultUserAgent,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) BySNOMED(ctx context.Context, code string) ([]Entity, error) {
	return c.query(ctx, fmt.Sprintf("?item wdt:%s %s .", PropSNOMED, Literal(code, "")))
}

func (c *httpClient) ByLabel(ctx context.Context, label string) ([]Entity, error) {
	return c.query(ctx, fmt.Sprintf("?item rdfs:label %s .", Literal(label, defaultLanguage)))
}

func (c *httpClient) query(ctx context.Context, match string) ([]Entity, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "wikidata: rate limit wait")
	}

	q := BuildQuery(match)
	u := c.endpoint + "?" + url.Values{"query": {q}, "format": {"json"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "wikidata: create request")
	}
	req.Header.Set("Accept", "application/sparql-results+json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "wikidata: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "wikidata: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(ErrStatus, "wikidata: status %d", resp.StatusCode)
	}

	var res sparqlResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, eris.Wrapf(ErrDecode, "wikidata: %v", err)
	}
	return res.entities(), nil
}

// BuildQuery wraps a triple pattern binding ?item in the identifier query.
func BuildQuery(match string) string {
	return fmt.Sprintf(`SELECT ?item ?itemLabel ?drugbank ?atc ?rxnorm WHERE {
  %s
  OPTIONAL { ?item wdt:%s ?drugbank . }
  OPTIONAL { ?item wdt:%s ?atc . }
  OPTIONAL { ?item wdt:%s ?rxnorm . }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "%s". }
}
LIMIT %d`, match, PropDrugBank, PropATC, PropRxNorm, defaultLanguage, resultLimit)
}

// Literal renders s as a quoted SPARQL string literal with an optional
// language tag.
func Literal(s, lang string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
	lit := `"` + r.Replace(strings.TrimSpace(s)) + `"`
	if lang != "" {
		lit += "@" + lang
	}
	return lit
}

type binding struct {
	Value string `json:"value"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]binding `json:"bindings"`
	} `json:"results"`
}

// entities groups result rows by item. Entities and their identifier lists
// are sorted so repeated queries give identical output.
func (r sparqlResponse) entities() []Entity {
	byURI := make(map[string]*Entity)
	for _, b := range r.Results.Bindings {
		uri := b["item"].Value
		if uri == "" {
			continue
		}
		e, ok := byURI[uri]
		if !ok {
			e = &Entity{URI: uri, Label: b["itemLabel"].Value}
			byURI[uri] = e
		}
		e.DrugBankID = appendUnique(e.DrugBankID, b["drugbank"].Value)
		e.ATCCodes = appendUnique(e.ATCCodes, b["atc"].Value)
		e.RxNorm = appendUnique(e.RxNorm, b["rxnorm"].Value)
	}

	out := make([]Entity, 0, len(byURI))
	for _, e := range byURI {
		sort.Strings(e.DrugBankID)
		sort.Strings(e.ATCCodes)
		sort.Strings(e.RxNorm)
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

func appendUnique(s []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return s
	}
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
