package favorites

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/foodmap/foodmap/internal/httpclient"
	"github.com/foodmap/foodmap/internal/metrics"
	"github.com/foodmap/foodmap/internal/popup"
	"github.com/foodmap/foodmap/pkg/model"
)

// Route patterns that count as a favorites/cart add. A pattern matches the
// request path exactly or as a segment prefix: "/cart/add" matches
// "/cart/add" and "/cart/add/42", never "/cart/addons".
var watchedRoutes = []string{
	"/api/favorites/add",
	"/favorites/add",
	"/cart/add",
	"/api/add_to_cart",
}

// Body fields checked for the product id, in priority order.
var idFields = []string{"item_id", "product_id", "id"}

// ProductSource looks up the full detail for an on-sale product.
type ProductSource func(ctx context.Context, productID int64) (*model.Product, error)

// Interceptor watches outbound requests for favorites/cart adds and, when
// one succeeds, notifies the backend once and surfaces the sale popup for
// discounted products. It observes only; the intercepted response always
// reaches the caller untouched.
type Interceptor struct {
	logger    *zap.Logger
	client    *httpclient.Client
	notifyURL string
	source    ProductSource
	popup     *popup.Popup
}

// New creates the interceptor. client is the same Client the interceptor is
// registered on; the notify call goes through its Send path so the
// interceptor can never observe its own traffic.
func New(logger *zap.Logger, client *httpclient.Client, notifyURL string, source ProductSource, pp *popup.Popup) *Interceptor {
	return &Interceptor{
		logger:    logger,
		client:    client,
		notifyURL: notifyURL,
		source:    source,
		popup:     pp,
	}
}

// Wrap returns the chain link for httpclient.Client.Use.
func (ic *Interceptor) Wrap() httpclient.Interceptor {
	return func(next httpclient.RoundFunc) httpclient.RoundFunc {
		return func(req *http.Request) (*http.Response, error) {
			watched := req.Method == http.MethodPost && matchRoute(req.URL.Path)

			var rawBody []byte
			var contentType string
			if watched {
				rawBody, contentType = snapshotBody(req)
			}

			resp, err := next(req)
			if err != nil || !watched {
				return resp, err
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return resp, nil
			}

			ic.handleAdd(req.Context(), rawBody, contentType)
			return resp, nil
		}
	}
}

// handleAdd runs the post-success side effects. Failures are logged and
// swallowed so the intercepted call is never affected.
func (ic *Interceptor) handleAdd(ctx context.Context, rawBody []byte, contentType string) {
	productID, ok := extractProductID(rawBody, contentType)
	if !ok {
		metrics.FavoritesInterceptedTotal.WithLabelValues("no_product_id").Inc()
		ic.logger.Debug("favorites.no_product_id", zap.String("content_type", contentType))
		return
	}

	notified, sale := ic.notify(ctx, productID)
	if !notified {
		metrics.FavoritesInterceptedTotal.WithLabelValues("notify_failed").Inc()
		return
	}
	metrics.FavoritesInterceptedTotal.WithLabelValues("notified").Inc()

	if !sale {
		return
	}
	ic.showSale(ctx, productID)
}

// notify posts {"product_id":N} exactly once. The second return reports
// whether the backend flagged the product as on sale.
func (ic *Interceptor) notify(ctx context.Context, productID int64) (notified, sale bool) {
	payload, _ := json.Marshal(map[string]int64{"product_id": productID})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ic.notifyURL, bytes.NewReader(payload))
	if err != nil {
		ic.logger.Warn("favorites.notify_build_failed", zap.Error(err))
		return false, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ic.client.Send(req)
	if err != nil {
		ic.logger.Warn("favorites.notify_failed",
			zap.Int64("product_id", productID),
			zap.Error(err))
		return false, false
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ic.logger.Warn("favorites.notify_rejected",
			zap.Int64("product_id", productID),
			zap.Int("status", resp.StatusCode))
		return false, false
	}

	// The notify endpoint may answer with a non-JSON body; that still
	// counts as delivered.
	var out struct {
		OK   bool            `json:"ok"`
		Sale *model.SaleInfo `json:"sale"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		ic.logger.Debug("favorites.notify_nonjson", zap.Int64("product_id", productID))
		return true, false
	}
	return true, out.OK && out.Sale != nil
}

// showSale fetches the product detail and raises the popup when the
// product is actually discounted.
func (ic *Interceptor) showSale(ctx context.Context, productID int64) {
	if ic.source == nil || ic.popup == nil {
		return
	}
	product, err := ic.source(ctx, productID)
	if err != nil {
		ic.logger.Warn("favorites.detail_failed",
			zap.Int64("product_id", productID),
			zap.Error(err))
		return
	}
	if product == nil || !product.OnSale() {
		return
	}
	ic.popup.Show(*product)
}

// matchRoute reports whether path hits one of the watched add routes,
// respecting segment boundaries.
func matchRoute(path string) bool {
	for _, route := range watchedRoutes {
		if path == route || strings.HasPrefix(path, route+"/") {
			return true
		}
	}
	return false
}

// snapshotBody captures the request body without consuming it. Requests
// built via http.NewRequest carry GetBody; for anything else the body is
// read and restored.
func snapshotBody(req *http.Request) (raw []byte, contentType string) {
	contentType = req.Header.Get("Content-Type")
	if req.Body == nil {
		return nil, contentType
	}
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, contentType
		}
		raw, _ = io.ReadAll(body)
		_ = body.Close()
		return raw, contentType
	}
	raw, _ = io.ReadAll(req.Body)
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(raw))
	return raw, contentType
}

// extractProductID pulls the product id out of the request body, dispatching
// on Content-Type and checking item_id, product_id, then id.
func extractProductID(raw []byte, contentType string) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	switch {
	case strings.Contains(mediaType, "json"):
		return idFromJSON(raw)
	case mediaType == "application/x-www-form-urlencoded":
		return idFromForm(raw)
	case mediaType == "multipart/form-data":
		return idFromMultipart(raw, params["boundary"])
	default:
		// Unlabeled bodies are most often JSON in practice.
		return idFromJSON(raw)
	}
}

func idFromJSON(raw []byte) (int64, bool) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return 0, false
	}
	for _, field := range idFields {
		if v, ok := body[field]; ok {
			if id, ok := coerceID(v); ok {
				return id, true
			}
		}
	}
	return 0, false
}

func idFromForm(raw []byte) (int64, bool) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return 0, false
	}
	for _, field := range idFields {
		if v := values.Get(field); v != "" {
			if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

func idFromMultipart(raw []byte, boundary string) (int64, bool) {
	if boundary == "" {
		return 0, false
	}
	reader := multipart.NewReader(bytes.NewReader(raw), boundary)
	form, err := reader.ReadForm(1 << 20)
	if err != nil {
		return 0, false
	}
	defer func() { _ = form.RemoveAll() }()

	for _, field := range idFields {
		if vs, ok := form.Value[field]; ok && len(vs) > 0 {
			if id, err := strconv.ParseInt(strings.TrimSpace(vs[0]), 10, 64); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

func coerceID(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return id, err == nil
	case json.Number:
		id, err := t.Int64()
		return id, err == nil
	default:
		return 0, false
	}
}
