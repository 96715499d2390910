// Package gateway is a stateless request/response wrapper around the cart
// service, the order-of-record for authenticated carts. It keeps no state,
// performs no retries and does no caching; transport failures are returned
// to the caller as-is.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"storefront/internal/cart"
)

// Wire representation of the server cart.
type itemPayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int32  `json:"quantity"`
	ImageURL  string `json:"imageUrl"`
}

type cartPayload struct {
	ID    string        `json:"id"`
	Items []itemPayload `json:"items"`
}

// Client talks to the cart service on behalf of one authenticated session.
// It implements cart.Gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// New creates a client bound to the session's auth token.
func New(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		token:      token,
	}
}

// FetchCart returns the current server cart.
func (c *Client) FetchCart(ctx context.Context) (cart.RemoteCart, error) {
	payload, err := c.do(ctx, http.MethodGet, "/cart", nil)
	if err != nil {
		return cart.RemoteCart{}, err
	}
	remote := cart.RemoteCart{ID: payload.ID, Items: make([]cart.Item, 0, len(payload.Items))}
	for _, it := range payload.Items {
		remote.Items = append(remote.Items, cart.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			ImageURL:  it.ImageURL,
		})
	}
	return remote, nil
}

// AddItem adds quantity of a product to the server cart. Server semantics
// are additive: adding a product already in the cart increases its line
// quantity rather than overwriting it.
func (c *Client) AddItem(ctx context.Context, productID string, quantity int32) error {
	body := map[string]interface{}{"productId": productID, "quantity": quantity}
	_, err := c.do(ctx, http.MethodPost, "/cart/items", body)
	return err
}

// SetQuantity replaces the absolute quantity of one line.
func (c *Client) SetQuantity(ctx context.Context, productID string, quantity int32) error {
	body := map[string]interface{}{"quantity": quantity}
	_, err := c.do(ctx, http.MethodPut, "/cart/items/"+url.PathEscape(productID), body)
	return err
}

// RemoveItem deletes one line from the server cart.
func (c *Client) RemoveItem(ctx context.Context, productID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart/items/"+url.PathEscape(productID), nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*cartPayload, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "cart service %s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("cart service %s %s: %s", method, path, summarize(resp.StatusCode, raw))
	}

	var payload cartPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errors.Wrap(err, "decoding cart payload")
	}
	return &payload, nil
}

// summarize keeps error strings short enough for logs while retaining the
// status code and the leading part of the body.
func summarize(status int, body []byte) string {
	const max = 200
	trimmed := body
	if len(trimmed) > max {
		trimmed = trimmed[:max]
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
