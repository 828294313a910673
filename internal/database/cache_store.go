package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reop/addressfinder/internal/models"
	"github.com/reop/addressfinder/internal/places"
)

// CacheStore persists the place details and suggestion caches in postgres.
// It implements places.Store; a missing or expired row is a miss.
type CacheStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCacheStore(db *DB) *CacheStore {
	return &CacheStore{db: db.DB, now: time.Now}
}

func (s *CacheStore) LoadDetails(ctx context.Context, placeID string) (*places.Details, error) {
	var row models.PlaceDetailsCache
	err := s.db.WithContext(ctx).
		Where("place_id = ? AND expires_at > ?", placeID, s.now()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeDetails(row)
}

func (s *CacheStore) SaveDetails(ctx context.Context, d places.Details, expiresAt time.Time) error {
	row, err := encodeDetails(d, expiresAt)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "place_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at"}),
	}).Create(&row).Error
}

func (s *CacheStore) LoadSuggestions(ctx context.Context, key string) ([]places.Candidate, error) {
	var row models.PlaceSearchCache
	err := s.db.WithContext(ctx).
		Where("cache_key = ? AND expires_at > ?", key, s.now()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSuggestions(row)
}

func (s *CacheStore) SaveSuggestions(ctx context.Context, key string, candidates []places.Candidate, expiresAt time.Time) error {
	row, err := encodeSuggestions(key, candidates, expiresAt)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"result", "expires_at"}),
	}).Create(&row).Error
}

// PurgeExpired deletes expired rows from both tables.
func (s *CacheStore) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	details := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.PlaceDetailsCache{})
	if details.Error != nil {
		return 0, details.Error
	}
	searches := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.PlaceSearchCache{})
	if searches.Error != nil {
		return details.RowsAffected, searches.Error
	}
	return details.RowsAffected + searches.RowsAffected, nil
}

func encodeDetails(d places.Details, expiresAt time.Time) (models.PlaceDetailsCache, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return models.PlaceDetailsCache{}, fmt.Errorf("encode details %s: %w", d.PlaceID, err)
	}
	return models.PlaceDetailsCache{PlaceID: d.PlaceID, Payload: string(b), ExpiresAt: expiresAt}, nil
}

func decodeDetails(row models.PlaceDetailsCache) (*places.Details, error) {
	var d places.Details
	if err := json.Unmarshal([]byte(row.Payload), &d); err != nil {
		return nil, fmt.Errorf("decode details %s: %w", row.PlaceID, err)
	}
	if d.PlaceID == "" {
		d.PlaceID = row.PlaceID
	}
	return &d, nil
}

func encodeSuggestions(key string, candidates []places.Candidate, expiresAt time.Time) (models.PlaceSearchCache, error) {
	if candidates == nil {
		candidates = []places.Candidate{}
	}
	b, err := json.Marshal(candidates)
	if err != nil {
		return models.PlaceSearchCache{}, fmt.Errorf("encode suggestions %q: %w", key, err)
	}
	return models.PlaceSearchCache{CacheKey: key, Result: string(b), ExpiresAt: expiresAt}, nil
}

func decodeSuggestions(row models.PlaceSearchCache) ([]places.Candidate, error) {
	var out []places.Candidate
	if err := json.Unmarshal([]byte(row.Result), &out); err != nil {
		return nil, fmt.Errorf("decode suggestions %q: %w", row.CacheKey, err)
	}
	// 빈 결과도 캐시 히트로 취급 (nil이면 miss)
	if out == nil {
		out = []places.Candidate{}
	}
	return out, nil
}
