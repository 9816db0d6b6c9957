package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/foodmap/foodmap/internal/metrics"
	"github.com/foodmap/foodmap/internal/store"
	"github.com/foodmap/foodmap/pkg/geo"
	"github.com/foodmap/foodmap/pkg/model"
)

// Query scopes a catalog lookup to a map view.
type Query struct {
	Center    geo.Point
	HasCenter bool
	RadiusKm  float64
	Brand     string // raw user input; normalized internally
	Limit     int
	UserID    int64 // 0 = guest
}

// Service answers store and product queries against the hybrid store,
// applying distance filtering, brand normalization, discount normalization
// and preference-weighted ordering.
type Service struct {
	logger   *zap.Logger
	store    store.Store
	cacheTTL time.Duration
}

// New creates a catalog Service. cacheTTL <= 0 disables the spotlight cache.
func New(logger *zap.Logger, st store.Store, cacheTTL time.Duration) *Service {
	return &Service{logger: logger, store: st, cacheTTL: cacheTTL}
}

// ListStores returns stores within the query radius with distances attached.
func (s *Service) ListStores(ctx context.Context, q Query) ([]model.StoreMarker, error) {
	start := time.Now()
	defer metrics.ObserveQuery("stores", start)

	rows, err := s.store.StoreRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}

	radius := q.RadiusKm
	if radius <= 0 {
		radius = 3
	}
	brand := NormalizeBrand(q.Brand)

	out := make([]model.StoreMarker, 0, len(rows))
	for _, m := range rows {
		if q.HasCenter {
			d := geo.HaversineKm(q.Center, geo.Point{Lat: m.Latitude, Lng: m.Longitude})
			if d > radius {
				continue
			}
			d = roundKm(d)
			m.DistanceKm = &d
		}
		if !brandMatches(m.Brand, brand) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Spotlight returns discounted products near the query center, deduplicated
// and ordered by preference score, discount depth, then distance. Results
// are cached briefly per view.
func (s *Service) Spotlight(ctx context.Context, q Query) ([]model.Product, error) {
	start := time.Now()
	defer metrics.ObserveQuery("spotlight", start)

	limit := q.Limit
	if limit <= 0 {
		limit = 12
	}
	brand := NormalizeBrand(q.Brand)

	cacheKey := fmt.Sprintf("spotlight:%d:%.5f:%.5f:%.1f:%s:%d",
		q.UserID, q.Center.Lat, q.Center.Lng, q.RadiusKm, brand, limit)
	if s.cacheTTL > 0 {
		var cached []model.Product
		if err := s.store.GetJSON(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	rows, err := s.store.ProductRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("spotlight: %w", err)
	}

	weights := map[string]float64{}
	if q.UserID != 0 {
		if w, err := s.store.PrefWeights(ctx, q.UserID); err != nil {
			s.logger.Warn("catalog.pref_weights_failed", zap.Int64("user", q.UserID), zap.Error(err))
		} else {
			weights = w
		}
	}

	radius := q.RadiusKm
	if radius <= 0 {
		radius = 3
	}

	type scored struct {
		model.Product
		pref float64
		dist float64
	}

	seen := make(map[int64]bool)
	var candidates []scored
	for _, p := range rows {
		if seen[p.ProductID] {
			continue
		}
		seen[p.ProductID] = true

		normalizeDiscount(&p)
		if !brandMatches(p.Brand, brand) {
			continue
		}

		d := geo.HaversineKm(q.Center, geo.Point{Lat: p.Latitude, Lng: p.Longitude})
		if q.HasCenter && d > radius {
			continue
		}
		dk := roundKm(d)
		p.DistanceKm = &dk

		candidates = append(candidates, scored{Product: p, pref: weights[p.Category], dist: d})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].pref != candidates[j].pref {
			return candidates[i].pref > candidates[j].pref
		}
		if candidates[i].DiscountRate != candidates[j].DiscountRate {
			return candidates[i].DiscountRate < candidates[j].DiscountRate
		}
		return candidates[i].dist < candidates[j].dist
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]model.Product, len(candidates))
	for i, c := range candidates {
		out[i] = c.Product
	}

	if s.cacheTTL > 0 {
		if err := s.store.SetJSON(ctx, cacheKey, out, s.cacheTTL); err != nil {
			s.logger.Debug("catalog.spotlight_cache_failed", zap.Error(err))
		}
	}
	return out, nil
}

// Recommendations is the second data source the favorites hook falls back
// to: best-rated products for the brand filter, no radius cut.
func (s *Service) Recommendations(ctx context.Context, q Query) ([]model.Product, error) {
	start := time.Now()
	defer metrics.ObserveQuery("recommendations", start)

	limit := q.Limit
	if limit <= 0 {
		limit = 12
	}
	brand := NormalizeBrand(q.Brand)

	rows, err := s.store.ProductRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("recommendations: %w", err)
	}

	seen := make(map[int64]bool)
	var out []model.Product
	for _, p := range rows {
		if seen[p.ProductID] {
			continue
		}
		seen[p.ProductID] = true

		normalizeDiscount(&p)
		if !brandMatches(p.Brand, brand) {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AvgRating != out[j].AvgRating {
			return out[i].AvgRating > out[j].AvgRating
		}
		return out[i].DiscountRate < out[j].DiscountRate
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaleInfo resolves the active special for a product, or nil when it is not
// on sale.
func (s *Service) SaleInfo(ctx context.Context, productID int64) (*model.SaleInfo, error) {
	sale, err := s.store.SaleFor(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return sale, err
}

// normalizeDiscount brings a raw stored discount rate into (0,1] and derives
// the final price. Rates recorded as percentages (80 meaning 80%) are
// divided down; anything unusable degrades to "no discount".
func normalizeDiscount(p *model.Product) {
	rate := p.DiscountRate
	if rate > 1.5 {
		rate = rate / 100.0
	}
	if rate <= 0 || rate > 1 {
		rate = 1.0
	}
	p.DiscountRate = rate

	price := decimal.NewFromFloat(p.Price)
	p.FinalPrice = price.Mul(decimal.NewFromFloat(rate)).Round(2).InexactFloat64()
}

func roundKm(d float64) float64 {
	return math.Round(d*1000) / 1000
}
