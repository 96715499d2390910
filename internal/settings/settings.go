// Package settings fetches remotely-configured pricing policy and caches it
// for a bounded interval. When the settings source is unreachable or the
// cache is cold, fixed defaults apply.
package settings

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Reference-deployment defaults, in minor currency units.
const (
	DefaultShippingPrice          int64 = 1500
	DefaultLargePurchaseThreshold int64 = 20000
)

// Shipping is the remotely-configured threshold/price pair.
type Shipping struct {
	ShippingPrice          int64 `json:"shippingPrice"`
	LargePurchaseThreshold int64 `json:"largePurchaseThreshold"`
}

// Defaults returns the built-in pricing policy.
func Defaults() Shipping {
	return Shipping{
		ShippingPrice:          DefaultShippingPrice,
		LargePurchaseThreshold: DefaultLargePurchaseThreshold,
	}
}

// Client serves the current shipping settings, re-fetching at most once per
// TTL. It never returns an error: a failed fetch falls back to the last
// cached value, or to the defaults when nothing was ever fetched.
type Client struct {
	httpClient *http.Client
	url        string
	ttl        time.Duration
	log        *logrus.Entry
	now        func() time.Time

	mu         sync.Mutex
	cached     Shipping
	haveCache  bool
	fetchedAt  time.Time
	refreshing bool
}

// New creates a settings client. An empty url disables remote fetching and
// pins the defaults.
func New(url string, ttl time.Duration, log *logrus.Entry) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		url:        url,
		ttl:        ttl,
		log:        log,
		now:        time.Now,
	}
}

// Shipping returns the active threshold/price pair. The remote fetch runs
// outside the lock and at most one fetch is in flight; callers that arrive
// while a refresh is underway get the cached value (or the defaults)
// immediately instead of queueing behind it.
func (c *Client) Shipping(ctx context.Context) Shipping {
	if c.url == "" {
		return Defaults()
	}

	c.mu.Lock()
	if (c.haveCache && c.now().Sub(c.fetchedAt) < c.ttl) || c.refreshing {
		s, have := c.cached, c.haveCache
		c.mu.Unlock()
		if have {
			return s
		}
		return Defaults()
	}
	c.refreshing = true
	c.mu.Unlock()

	fetched, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false

	if err != nil {
		c.log.WithError(err).Warn("settings: fetch failed, using fallback")
		if c.haveCache {
			return c.cached
		}
		return Defaults()
	}

	c.cached = fetched
	c.haveCache = true
	c.fetchedAt = c.now()
	return c.cached
}

func (c *Client) fetch(ctx context.Context) (Shipping, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Shipping{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Shipping{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Shipping{}, errors.Errorf("settings endpoint returned status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Shipping{}, err
	}
	var s Shipping
	if err := json.Unmarshal(raw, &s); err != nil {
		return Shipping{}, err
	}
	return s, nil
}
