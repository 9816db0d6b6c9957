package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/foodmap/foodmap/pkg/geo"
)

// Session-scoped client state lives in Redis: the persisted map center, the
// "reminder shown today" flag, and the address search history. These are the
// Go-side analogue of what the browser kept in localStorage.

type centerRecord struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	RadiusKm float64 `json:"radius_km"`
}

// SaveCenter persists the map center and radius for a session.
func (s *HybridStore) SaveCenter(ctx context.Context, session string, center geo.Point, radiusKm float64) error {
	return s.SetJSON(ctx, "center:"+session, centerRecord{
		Lat:      center.Lat,
		Lng:      center.Lng,
		RadiusKm: radiusKm,
	}, 0)
}

// LoadCenter returns the persisted center, or the default center and radius
// when none was saved yet.
func (s *HybridStore) LoadCenter(ctx context.Context, session string) (geo.Point, float64, error) {
	var rec centerRecord
	err := s.GetJSON(ctx, "center:"+session, &rec)
	if errors.Is(err, ErrNotFound) {
		return geo.DefaultCenter, 3, nil
	}
	if err != nil {
		return geo.DefaultCenter, 3, err
	}
	return geo.Point{Lat: rec.Lat, Lng: rec.Lng}, rec.RadiusKm, nil
}

// ReminderShownDate returns the YYYY-MM-DD the reminder was last shown for
// this session, or "" when never shown.
func (s *HybridStore) ReminderShownDate(ctx context.Context, session string) (string, error) {
	val, err := s.redis.Get(ctx, "reminder:"+session).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// MarkReminderShown records the date the reminder was shown.
func (s *HybridStore) MarkReminderShown(ctx context.Context, session, date string) error {
	return s.redis.Set(ctx, "reminder:"+session, date, 0).Err()
}

// AddressHistory returns the session's address search history, most recent
// first.
func (s *HybridStore) AddressHistory(ctx context.Context, session string) ([]string, error) {
	vals, err := s.redis.LRange(ctx, "addrhist:"+session, 0, maxAddressHistory-1).Result()
	if err != nil {
		return nil, err
	}
	return vals, nil
}

// PushAddressHistory prepends address to the history, deduplicating and
// keeping at most maxAddressHistory entries.
func (s *HybridStore) PushAddressHistory(ctx context.Context, session, address string) error {
	if address == "" {
		return nil
	}
	key := "addrhist:" + session
	pipe := s.redis.TxPipeline()
	pipe.LRem(ctx, key, 0, address)
	pipe.LPush(ctx, key, address)
	pipe.LTrim(ctx, key, 0, maxAddressHistory-1)
	_, err := pipe.Exec(ctx)
	return err
}
