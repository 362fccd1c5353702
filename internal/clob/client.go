package clob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"polytrader/internal/order"
)

// ErrNoQuote is returned when the book has no price on the requested side.
var ErrNoQuote = errors.New("clob: no quote available")

// RESTClient talks to the CLOB's public price endpoints and the
// authenticated trading endpoints. It interprets only {success, data|error}
// shapes; signing is delegated to the gateway the base URL points at.
type RESTClient struct {
	baseURL    *url.URL
	dataURL    *url.URL
	httpClient *http.Client
	apiKey     string
}

type RESTConfig struct {
	APIURL         string
	DataAPIURL     string
	APIKey         string
	TimeoutSeconds int
}

func NewRESTClient(cfg RESTConfig) (*RESTClient, error) {
	raw := strings.TrimSpace(cfg.APIURL)
	if raw == "" {
		return nil, fmt.Errorf("clob api_url cannot be empty")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing clob api_url failed: %w", err)
	}
	dataRaw := strings.TrimSpace(cfg.DataAPIURL)
	if dataRaw == "" {
		dataRaw = raw
	}
	data, err := url.Parse(dataRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing clob data_api_url failed: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTClient{
		baseURL:    base,
		dataURL:    data,
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     strings.TrimSpace(cfg.APIKey),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *RESTClient) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

var _ Client = (*RESTClient)(nil)

// BestPrice returns the best book price for one side of a token.
func (c *RESTClient) BestPrice(ctx context.Context, tokenID string, side PriceSide) (float64, error) {
	q := url.Values{}
	q.Set("token_id", tokenID)
	q.Set("side", string(side))
	body, err := c.get(ctx, c.baseURL, "/price", q)
	if err != nil {
		return 0, err
	}
	price := gjson.GetBytes(body, "price")
	if !price.Exists() || price.Float() <= 0 {
		return 0, fmt.Errorf("%w: token=%s side=%s", ErrNoQuote, tokenID, side)
	}
	return price.Float(), nil
}

// Midpoint returns the mid between best bid and best ask.
func (c *RESTClient) Midpoint(ctx context.Context, tokenID string) (float64, error) {
	q := url.Values{}
	q.Set("token_id", tokenID)
	body, err := c.get(ctx, c.baseURL, "/midpoint", q)
	if err != nil {
		return 0, err
	}
	mid := gjson.GetBytes(body, "mid")
	if !mid.Exists() || mid.Float() <= 0 {
		return 0, fmt.Errorf("%w: token=%s", ErrNoQuote, tokenID)
	}
	return mid.Float(), nil
}

// OpenOrders fetches the full open-order set for the authenticated identity
// in one batched call.
func (c *RESTClient) OpenOrders(ctx context.Context) ([]OpenOrder, error) {
	body, err := c.get(ctx, c.baseURL, "/data/orders", nil)
	if err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(body)
	items := parsed
	if parsed.IsObject() {
		items = parsed.Get("data")
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("clob: unexpected open orders payload")
	}
	out := make([]OpenOrder, 0, len(items.Array()))
	items.ForEach(func(_, item gjson.Result) bool {
		out = append(out, OpenOrder{
			OrderRef:  item.Get("id").String(),
			TokenID:   item.Get("asset_id").String(),
			Side:      item.Get("side").String(),
			Price:     item.Get("price").Float(),
			Size:      item.Get("original_size").Float(),
			Remaining: item.Get("size_matched").Float(),
		})
		return true
	})
	return out, nil
}

// SubmitOrder posts an order. A zero price means marketable: the current
// best price on the opposite book side is quoted and submitted as the limit.
func (c *RESTClient) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if !req.Side.Valid() {
		return OrderResult{}, fmt.Errorf("clob: invalid side %q", req.Side)
	}
	price := req.Price
	if price <= 0 {
		quoted, err := c.BestPrice(ctx, req.TokenID, SideForPrice(req.Side))
		if err != nil {
			return OrderResult{}, fmt.Errorf("clob: quoting marketable price: %w", err)
		}
		price = quoted
	}
	payload := map[string]any{
		"token_id": req.TokenID,
		"side":     string(req.Side),
		"size":     req.Size,
		"price":    price,
	}
	body, err := c.post(ctx, "/order", payload)
	if err != nil {
		return OrderResult{}, err
	}
	res := OrderResult{
		Success:  gjson.GetBytes(body, "success").Bool(),
		OrderRef: gjson.GetBytes(body, "orderID").String(),
		Error:    gjson.GetBytes(body, "errorMsg").String(),
	}
	return res, nil
}

// CancelOrder cancels a resting order by its exchange reference.
func (c *RESTClient) CancelOrder(ctx context.Context, orderRef string) error {
	orderRef = strings.TrimSpace(orderRef)
	if orderRef == "" {
		return fmt.Errorf("clob: order ref cannot be empty")
	}
	body, err := c.doRaw(ctx, http.MethodDelete, "/order", map[string]any{"orderID": orderRef})
	if err != nil {
		return err
	}
	if !gjson.GetBytes(body, "success").Bool() {
		msg := gjson.GetBytes(body, "errorMsg").String()
		if msg == "" {
			msg = "cancel rejected"
		}
		return fmt.Errorf("clob: %s", msg)
	}
	return nil
}

// Positions fetches current holdings for an owner address from the data API.
func (c *RESTClient) Positions(ctx context.Context, owner string) ([]Position, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, fmt.Errorf("clob: owner address cannot be empty")
	}
	q := url.Values{}
	q.Set("user", owner)
	body, err := c.get(ctx, c.dataURL, "/positions", q)
	if err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("clob: unexpected positions payload")
	}
	out := make([]Position, 0, len(parsed.Array()))
	parsed.ForEach(func(_, item gjson.Result) bool {
		out = append(out, Position{
			TokenID:  item.Get("asset").String(),
			Market:   item.Get("market").String(),
			Outcome:  item.Get("outcome").String(),
			Size:     item.Get("size").Float(),
			AvgPrice: item.Get("avgPrice").Float(),
			CurPrice: item.Get("curPrice").Float(),
			Value:    item.Get("currentValue").Float(),
		})
		return true
	})
	return out, nil
}

func (c *RESTClient) get(ctx context.Context, base *url.URL, path string, query url.Values) ([]byte, error) {
	endpoint := *base
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *RESTClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.doRaw(ctx, http.MethodPost, path, payload)
}

func (c *RESTClient) doRaw(ctx context.Context, method, path string, payload any) ([]byte, error) {
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *RESTClient) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		msg := gjson.GetBytes(raw, "error").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("clob: %s %s status=%d: %s", req.Method, req.URL.Path, resp.StatusCode, msg)
	}
	return raw, nil
}

// SideForPrice maps an order side to the book side used when quoting its
// marketable price: a BUY lifts the ask, a SELL hits the bid.
func SideForPrice(side order.Side) PriceSide {
	if side == order.SideBuy {
		return PriceSideSell
	}
	return PriceSideBuy
}
