package models

import (
	"time"
)

// PlaceDetailsCache stores Place Details responses by place id.
// Payload is the JSON-encoded places.Details.
type PlaceDetailsCache struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PlaceID   string    `gorm:"size:300;not null;uniqueIndex" json:"place_id"`
	Payload   string    `gorm:"type:text;not null" json:"payload"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

func (PlaceDetailsCache) TableName() string {
	return "place_details_cache"
}

// PlaceSearchCache stores suggestion lists by normalised search key.
type PlaceSearchCache struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CacheKey  string    `gorm:"size:500;not null;uniqueIndex" json:"cache_key"`
	Result    string    `gorm:"type:text;not null" json:"result"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

func (PlaceSearchCache) TableName() string {
	return "place_search_cache"
}
