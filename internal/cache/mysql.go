package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/evyataryagoni/geocoder/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GeocodeCacheModel is the GORM model for the geocode_cache table.
// Rows are looked up by the SHA-256 of the key, so keys of any length fit the index.
type GeocodeCacheModel struct {
	ID        uint    `gorm:"column:id;primaryKey;autoIncrement"`
	KeyHash   string  `gorm:"column:key_hash;type:char(64);not null;uniqueIndex"`
	CacheKey  string  `gorm:"column:cache_key;type:text;not null"`
	Lat       float64 `gorm:"column:lat;type:decimal(9,6);not null"`
	Lon       float64 `gorm:"column:lon;type:decimal(9,6);not null"`
	ZoomLevel int     `gorm:"column:zoom_level"`
	Result    string  `gorm:"column:result;type:text"`
	Timestamp int64   `gorm:"column:timestamp;not null"`
}

// TableName specifies the table name for GORM
func (GeocodeCacheModel) TableName() string {
	return "geocode_cache"
}

// MySQLCache implements Cache using MySQL with GORM.
// The result is kept as a JSON column next to the coordinates.
type MySQLCache struct {
	db *gorm.DB
}

// NewMySQLCache creates the cache table if needed and returns the cache
func NewMySQLCache(db *gorm.DB) (*MySQLCache, error) {
	if err := db.AutoMigrate(&GeocodeCacheModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate geocode_cache: %w", err)
	}
	return NewMySQLCacheWithDB(db), nil
}

// NewMySQLCacheWithDB wraps an already migrated connection
func NewMySQLCacheWithDB(db *gorm.DB) *MySQLCache {
	return &MySQLCache{db: db}
}

// HashKey returns the indexed form of a cache key
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// Get implements Cache
func (c *MySQLCache) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	var record GeocodeCacheModel
	err := c.db.WithContext(ctx).Where("key_hash = ?", HashKey(key)).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	entry := &models.CacheEntry{
		Lat:       record.Lat,
		Lon:       record.Lon,
		ZoomLevel: record.ZoomLevel,
		Timestamp: record.Timestamp,
	}
	if record.Result != "" {
		var result models.GeocodeResult
		if err := json.Unmarshal([]byte(record.Result), &result); err != nil {
			return nil, fmt.Errorf("failed to decode cached result: %w", err)
		}
		entry.Result = &result
	}
	return entry, nil
}

// Set implements Cache, upserting on the key
func (c *MySQLCache) Set(ctx context.Context, key string, entry models.CacheEntry) error {
	record := GeocodeCacheModel{
		KeyHash:   HashKey(key),
		CacheKey:  key,
		Lat:       entry.Lat,
		Lon:       entry.Lon,
		ZoomLevel: entry.ZoomLevel,
		Timestamp: entry.Timestamp,
	}
	if entry.Result != nil {
		data, err := json.Marshal(entry.Result)
		if err != nil {
			return fmt.Errorf("failed to encode cached result: %w", err)
		}
		record.Result = string(data)
	}

	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"lat", "lon", "zoom_level", "result", "timestamp"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *MySQLCache) Close() error {
	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
