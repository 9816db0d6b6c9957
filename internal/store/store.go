package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/foodmap/foodmap/pkg/geo"
	"github.com/foodmap/foodmap/pkg/model"
)

// ErrNotFound is returned when a requested row or key does not exist.
var ErrNotFound = errors.New("store: not found")

// Store defines the contract for catalog persistence and client-side state
// (map center, reminder flag, address history).
type Store interface {
	StoreRows(ctx context.Context) ([]model.StoreMarker, error)
	ProductRows(ctx context.Context) ([]model.Product, error)
	SaleFor(ctx context.Context, productID int64) (*model.SaleInfo, error)
	AddFavorite(ctx context.Context, userID, productID int64) error
	SaveRecoPrefs(ctx context.Context, userID int64, categories []string) error
	PrefWeights(ctx context.Context, userID int64) (map[string]float64, error)
	InsertNotification(ctx context.Context, userID, productID int64, productName, message string) error

	SaveCenter(ctx context.Context, session string, center geo.Point, radiusKm float64) error
	LoadCenter(ctx context.Context, session string) (geo.Point, float64, error)
	ReminderShownDate(ctx context.Context, session string) (string, error)
	MarkReminderShown(ctx context.Context, session, date string) error
	AddressHistory(ctx context.Context, session string) ([]string, error)
	PushAddressHistory(ctx context.Context, session, address string) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error

	HealthCheck(ctx context.Context) error
	Close() error
}

// maxAddressHistory bounds the MRU address list.
const maxAddressHistory = 5

// HybridStore is a Redis-first, Postgres-backed store.
type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
}

// NewHybrid connects Redis and Postgres. pgURL may be empty in tests, which
// leaves the Postgres side disabled.
func NewHybrid(redisAddr, redisPass string, redisDB int, pgURL string, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPass,
		DB:       redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger}, nil
}

// StoreRows returns every store with its aggregated remaining quantity.
// Radius and brand filtering happen in the catalog layer.
func (s *HybridStore) StoreRows(ctx context.Context) ([]model.StoreMarker, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	rows, err := s.PG.Query(ctx, `
		SELECT s.id, s.name, COALESCE(s.brand,''), COALESCE(s.address,''),
		       s.latitude, s.longitude,
		       COALESCE(SUM(p.remaining_qty), 0)::int AS remaining_qty
		FROM stores s
		LEFT JOIN products p ON p.store_id = s.id
		GROUP BY s.id;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StoreMarker
	for rows.Next() {
		var m model.StoreMarker
		if err := rows.Scan(&m.ID, &m.Name, &m.Brand, &m.Address,
			&m.Latitude, &m.Longitude, &m.RemainingQty); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ProductRows returns every product joined with its store and the best
// currently-active special. DiscountRate comes back raw; the catalog layer
// normalizes it.
func (s *HybridStore) ProductRows(ctx context.Context) ([]model.Product, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	rows, err := s.PG.Query(ctx, `
		SELECT p.id, p.name, COALESCE(p.category,''), COALESCE(p.image_url,''), p.price,
		       st.id, st.name, COALESCE(st.brand,''), COALESCE(st.address,''),
		       st.latitude, st.longitude,
		       COALESCE(sp.discount_rate, 1.0),
		       COALESCE(r.avg_rating, 0), COALESCE(r.rating_count, 0)
		FROM products p
		JOIN stores st ON st.id = p.store_id
		LEFT JOIN LATERAL (
			SELECT discount_rate FROM specials
			WHERE product_id = p.id AND store_id = p.store_id AND end_date >= CURRENT_DATE
			ORDER BY discount_rate ASC LIMIT 1
		) sp ON TRUE
		LEFT JOIN LATERAL (
			SELECT AVG(rating)::float8 AS avg_rating, COUNT(*)::int AS rating_count
			FROM product_reviews WHERE product_id = p.id
		) r ON TRUE;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Category, &p.ImageURL, &p.Price,
			&p.StoreID, &p.StoreName, &p.Brand, &p.Address,
			&p.Latitude, &p.Longitude,
			&p.DiscountRate, &p.AvgRating, &p.RatingCount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaleFor returns the best active special for a product: lowest effective
// rate, latest end date wins ties. Rates stored as percentages (> 1.5) are
// normalized to fractions. Returns ErrNotFound when the product has no
// active special.
func (s *HybridStore) SaleFor(ctx context.Context, productID int64) (*model.SaleInfo, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	row := s.PG.QueryRow(ctx, `
		WITH normalized AS (
			SELECT p.id AS product_id, p.name AS product_name, p.price,
			       CASE WHEN sp.discount_rate > 1.5 THEN sp.discount_rate / 100.0
			            ELSE sp.discount_rate END AS effective_rate,
			       COALESCE(sp.end_date, DATE '9999-12-31') AS end_date
			FROM products p
			JOIN specials sp ON sp.product_id = p.id
			WHERE p.id = $1
		)
		SELECT product_id, product_name, price, effective_rate,
		       ROUND((price * effective_rate)::numeric, 2)::float8 AS final_price,
		       to_char(end_date, 'YYYY-MM-DD')
		FROM normalized
		WHERE effective_rate > 0.00001 AND effective_rate < 0.99999
		  AND end_date >= CURRENT_DATE
		ORDER BY effective_rate ASC, end_date DESC
		LIMIT 1;
	`, productID)

	var sale model.SaleInfo
	err := row.Scan(&sale.ProductID, &sale.ProductName, &sale.Price,
		&sale.DiscountRate, &sale.FinalPrice, &sale.DiscountEnd)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// AddFavorite records a user's favorite product (idempotent).
func (s *HybridStore) AddFavorite(ctx context.Context, userID, productID int64) error {
	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO favorites (user_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, product_id) DO NOTHING;
	`, userID, productID)
	return err
}

// SaveRecoPrefs replaces a user's recommendation category preferences.
func (s *HybridStore) SaveRecoPrefs(ctx context.Context, userID int64, categories []string) error {
	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}
	tx, err := s.PG.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM user_preferences WHERE user_id = $1;`, userID); err != nil {
		return err
	}
	for _, cat := range categories {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_preferences (user_id, category, weight) VALUES ($1, $2, 1);
		`, userID, cat); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// PrefWeights returns per-category scores: stored preference weight plus the
// user's favorites count in that category.
func (s *HybridStore) PrefWeights(ctx context.Context, userID int64) (map[string]float64, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	rows, err := s.PG.Query(ctx, `
		SELECT category, SUM(score)::float8 FROM (
			SELECT category, weight::float8 AS score
			FROM user_preferences WHERE user_id = $1
			UNION ALL
			SELECT p.category, COUNT(*)::float8
			FROM favorites f JOIN products p ON p.id = f.product_id
			WHERE f.user_id = $1
			GROUP BY p.category
		) t
		GROUP BY category;
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	weights := make(map[string]float64)
	for rows.Next() {
		var cat string
		var score float64
		if err := rows.Scan(&cat, &score); err != nil {
			return nil, err
		}
		weights[cat] = score
	}
	return weights, rows.Err()
}

// InsertNotification records a user notification for downstream delivery.
func (s *HybridStore) InsertNotification(ctx context.Context, userID, productID int64, productName, message string) error {
	if s.PG == nil {
		return fmt.Errorf("postgres unavailable")
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO notifications (user_id, message, product_id, product_name, created_at)
		VALUES ($1, $2, $3, $4, NOW());
	`, userID, message, productID, productName)
	if err != nil {
		s.logger.Error("store.pg.insert_notification_failed", zap.Error(err))
	}
	return err
}

// HealthCheck pings Redis and, when configured, Postgres.
func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

// Close releases both connections.
func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	return s.redis.Close()
}

// SetJSON stores value as JSON under key with a TTL.
func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

// GetJSON loads a JSON value into dest. Missing keys return ErrNotFound.
func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
