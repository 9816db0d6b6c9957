package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foodmap/foodmap/internal/catalog"
	"github.com/foodmap/foodmap/internal/geocode"
	"github.com/foodmap/foodmap/internal/maprender"
	"github.com/foodmap/foodmap/internal/notify"
	"github.com/foodmap/foodmap/internal/store"
	"github.com/foodmap/foodmap/internal/view"
	"github.com/foodmap/foodmap/pkg/eventbus"
	"github.com/foodmap/foodmap/pkg/geo"
	"github.com/foodmap/foodmap/pkg/model"
)

// fakeStore backs the handlers with canned data.
type fakeStore struct {
	mu            sync.Mutex
	stores        []model.StoreMarker
	products      []model.Product
	sales         map[int64]*model.SaleInfo
	favorites     [][2]int64
	notifications []string
	prefs         map[int64][]string
	history       map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sales:   map[int64]*model.SaleInfo{},
		prefs:   map[int64][]string{},
		history: map[string][]string{},
	}
}

func (f *fakeStore) StoreRows(context.Context) ([]model.StoreMarker, error) { return f.stores, nil }
func (f *fakeStore) ProductRows(context.Context) ([]model.Product, error)   { return f.products, nil }

func (f *fakeStore) SaleFor(_ context.Context, id int64) (*model.SaleInfo, error) {
	if s, ok := f.sales[id]; ok {
		return s, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) AddFavorite(_ context.Context, userID, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.favorites = append(f.favorites, [2]int64{userID, productID})
	return nil
}

func (f *fakeStore) SaveRecoPrefs(_ context.Context, userID int64, cats []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs[userID] = cats
	return nil
}

func (f *fakeStore) PrefWeights(context.Context, int64) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func (f *fakeStore) InsertNotification(_ context.Context, _, _ int64, _, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, message)
	return nil
}

func (f *fakeStore) SaveCenter(context.Context, string, geo.Point, float64) error { return nil }
func (f *fakeStore) LoadCenter(context.Context, string) (geo.Point, float64, error) {
	return geo.DefaultCenter, 3, nil
}
func (f *fakeStore) ReminderShownDate(context.Context, string) (string, error) { return "", nil }
func (f *fakeStore) MarkReminderShown(context.Context, string, string) error   { return nil }

func (f *fakeStore) AddressHistory(_ context.Context, session string) ([]string, error) {
	return f.history[session], nil
}
func (f *fakeStore) PushAddressHistory(_ context.Context, session, addr string) error {
	f.history[session] = append([]string{addr}, f.history[session]...)
	return nil
}

func (f *fakeStore) SetJSON(context.Context, string, any, time.Duration) error { return nil }
func (f *fakeStore) GetJSON(context.Context, string, any) error                { return store.ErrNotFound }
func (f *fakeStore) HealthCheck(context.Context) error                         { return nil }
func (f *fakeStore) Close() error                                              { return nil }

type capturedQueue struct {
	mu   sync.Mutex
	sent []notify.UserNotification
}

func (q *capturedQueue) Publish(_ context.Context, n notify.UserNotification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, n)
	return nil
}

func newTestApp(t *testing.T, fs *fakeStore) (*fiber.App, *capturedQueue) {
	t.Helper()
	logger := zap.NewNop()

	bus := eventbus.New()
	vs := view.New(bus, geo.DefaultCenter, 3)
	cat := catalog.New(logger, fs, 0)
	renderer := maprender.New(logger, cat, fs, vs, 13)
	geocoder := geocode.New(logger, nil, "", "", fs)
	queue := &capturedQueue{}

	h := NewHandler(logger, cat, fs, vs, renderer, nil, geocoder, queue, nil)
	app := fiber.New()
	RegisterRoutes(app, nil, fs, h, nil, nil)
	return app, queue
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestSpotlightEndpoint(t *testing.T) {
	fs := newFakeStore()
	fs.products = []model.Product{
		{ProductID: 1, Name: "御飯糰", Brand: "7-11", Price: 40, DiscountRate: 0.75,
			Latitude: geo.DefaultCenter.Lat, Longitude: geo.DefaultCenter.Lng},
		{ProductID: 2, Name: "奶茶", Brand: "familymart", Price: 30, DiscountRate: 1,
			Latitude: geo.DefaultCenter.Lat, Longitude: geo.DefaultCenter.Lng},
	}
	app, _ := newTestApp(t, fs)

	resp, data := doJSON(t, app, http.MethodGet, "/api/spotlight_products", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var products []model.Product
	require.NoError(t, json.Unmarshal(data, &products))
	require.Len(t, products, 2)
	// Deeper discount sorts first.
	assert.Equal(t, int64(1), products[0].ProductID)
	assert.Equal(t, 30.0, products[0].FinalPrice)
}

func TestStoresEndpointFiltersByBrand(t *testing.T) {
	fs := newFakeStore()
	fs.stores = []model.StoreMarker{
		{ID: 1, Brand: "7-11", Latitude: geo.DefaultCenter.Lat, Longitude: geo.DefaultCenter.Lng, RemainingQty: 5},
		{ID: 2, Brand: "familymart", Latitude: geo.DefaultCenter.Lat, Longitude: geo.DefaultCenter.Lng, RemainingQty: 3},
	}
	app, _ := newTestApp(t, fs)

	resp, data := doJSON(t, app, http.MethodGet, "/api/stores?brand=seven", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stores []model.StoreMarker
	require.NoError(t, json.Unmarshal(data, &stores))
	require.Len(t, stores, 1)
	assert.Equal(t, int64(1), stores[0].ID)
}

func TestFavoritesAddNotifyMissingID(t *testing.T) {
	app, _ := newTestApp(t, newFakeStore())

	resp, data := doJSON(t, app, http.MethodPost, "/api/favorites/add_notify", `{}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"ok":false,"error":"missing product_id"}`, string(data))
}

func TestFavoritesAddNotifyWithSale(t *testing.T) {
	fs := newFakeStore()
	fs.sales[9] = &model.SaleInfo{
		ProductID:    9,
		ProductName:  "布丁",
		FinalPrice:   25,
		DiscountRate: 0.5,
	}
	app, queue := newTestApp(t, fs)

	resp, data := doJSON(t, app, http.MethodPost, "/api/favorites/add_notify",
		`{"product_id": 9, "user_id": 3}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		OK   bool            `json:"ok"`
		Sale *model.SaleInfo `json:"sale"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.OK)
	require.NotNil(t, out.Sale)
	assert.Equal(t, int64(9), out.Sale.ProductID)

	require.Len(t, fs.notifications, 1)
	assert.Contains(t, fs.notifications[0], "布丁")
	assert.Contains(t, fs.notifications[0], "25")

	require.Len(t, queue.sent, 1)
	assert.Equal(t, int64(9), queue.sent[0].ProductID)
	assert.Equal(t, int64(3), queue.sent[0].UserID)
}

func TestFavoritesAddNotifyNoSale(t *testing.T) {
	app, queue := newTestApp(t, newFakeStore())

	resp, data := doJSON(t, app, http.MethodPost, "/api/favorites/add_notify",
		`{"product_id": 123}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, true, out["ok"])
	assert.NotContains(t, out, "sale")
	assert.Empty(t, queue.sent)
}

func TestFavoritesAddNotifyFieldAliases(t *testing.T) {
	fs := newFakeStore()
	fs.sales[7] = &model.SaleInfo{ProductID: 7, ProductName: "茶葉蛋", FinalPrice: 8, DiscountRate: 0.8}
	app, _ := newTestApp(t, fs)

	// item_id outranks product_id and id.
	resp, data := doJSON(t, app, http.MethodPost, "/api/favorites/add_notify",
		`{"id": 1, "product_id": 2, "item_id": 7}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Sale *model.SaleInfo `json:"sale"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	require.NotNil(t, out.Sale)
	assert.Equal(t, int64(7), out.Sale.ProductID)
}

func TestFavoritesAdd(t *testing.T) {
	fs := newFakeStore()
	app, _ := newTestApp(t, fs)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/favorites/add",
		`{"product_id": 4, "user_id": 2}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, fs.favorites, 1)
	assert.Equal(t, [2]int64{2, 4}, fs.favorites[0])
}

func TestRecoPrefsValidation(t *testing.T) {
	fs := newFakeStore()
	app, _ := newTestApp(t, fs)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/user/reco_prefs", `{"categories":["drinks"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/user/reco_prefs",
		`{"user_id": 5, "categories":["drinks","bento"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"drinks", "bento"}, fs.prefs[5])
}

func TestSetCenterValidation(t *testing.T) {
	app, _ := newTestApp(t, newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/set_center", strings.NewReader("lat=&lng="))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/set_center",
		strings.NewReader("lat=25.05&lng=121.55&radius_km=2"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMapSnapshotRendersOnFirstHit(t *testing.T) {
	fs := newFakeStore()
	fs.stores = []model.StoreMarker{
		{ID: 1, Brand: "7-11", Latitude: geo.DefaultCenter.Lat, Longitude: geo.DefaultCenter.Lng, RemainingQty: 0},
	}
	app, _ := newTestApp(t, fs)

	resp, data := doJSON(t, app, http.MethodGet, "/api/map", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap maprender.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 13, snap.Base.Zoom)
	require.Len(t, snap.Markers, 2)
	assert.Equal(t, "user", snap.Markers[0].Kind)
	// Sold-out stores render gray regardless of brand.
	require.NotNil(t, snap.Markers[1].Style)
	assert.Equal(t, "#6c757d", snap.Markers[1].Style.Stroke)
}

func TestHealthEndpoint(t *testing.T) {
	app, _ := newTestApp(t, newFakeStore())

	resp, data := doJSON(t, app, http.MethodGet, "/health", "")

	// NATS is absent in tests, so health reports degraded.
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var out struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "degraded", out.Status)
	assert.Equal(t, "ok", out.Checks["store"])
}

func TestAreasEndpoint(t *testing.T) {
	app, _ := newTestApp(t, newFakeStore())

	resp, data := doJSON(t, app, http.MethodGet, "/api/areas", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Areas map[string]map[string]geo.Point `json:"areas"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Len(t, out.Areas, len(geo.Areas))
	assert.Contains(t, out.Areas, "臺北市")
}

func TestSetRegionRecentersView(t *testing.T) {
	app, _ := newTestApp(t, newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/set_region",
		strings.NewReader("county=臺北市&district=信義區"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	want := geo.Areas["臺北市"]["信義區"]
	_, data := doJSON(t, app, http.MethodGet, "/api/map", "")
	var snap maprender.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, want, snap.Base.Center)
}

func TestSetRegionRejectsUnknownArea(t *testing.T) {
	app, _ := newTestApp(t, newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/set_region",
		strings.NewReader("county=nowhere&district=nowhere"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/set_region", strings.NewReader("county=臺北市"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddressHistoryReadsGeocodeClient(t *testing.T) {
	fs := newFakeStore()
	fs.history["sess-1"] = []string{"台北車站", "市政府"}
	app, _ := newTestApp(t, fs)

	req := httptest.NewRequest(http.MethodGet, "/api/address_history", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "sess-1"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out struct {
		Addresses []string `json:"addresses"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, []string{"台北車站", "市政府"}, out.Addresses)
}

func TestSessionCookieMinted(t *testing.T) {
	app, _ := newTestApp(t, newFakeStore())

	resp, _ := doJSON(t, app, http.MethodGet, "/api/address_history", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			found = true
		}
	}
	assert.True(t, found)
}
