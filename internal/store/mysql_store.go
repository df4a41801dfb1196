package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evyataryagoni/geocoder/internal/geocode"
	"github.com/evyataryagoni/geocoder/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// KnownAddressModel is the GORM model for the known_addresses table.
// The auto-increment ID keeps load order, which decides substring matches.
type KnownAddressModel struct {
	ID         uint    `gorm:"column:id;primaryKey;autoIncrement"`
	AddressKey string  `gorm:"column:address_key;size:191;uniqueIndex"`
	Lat        float64 `gorm:"column:lat"`
	Lon        float64 `gorm:"column:lon"`
	PlaceType  string  `gorm:"column:place_type;size:32"`
	Display    string  `gorm:"column:display;size:255"`
	Zoom       int     `gorm:"column:zoom"`
}

// TableName specifies the table name for GORM
func (KnownAddressModel) TableName() string {
	return "known_addresses"
}

// KnownCityModel is the GORM model for the known_cities table
type KnownCityModel struct {
	ID   uint    `gorm:"column:id;primaryKey;autoIncrement"`
	Name string  `gorm:"column:name;size:191;uniqueIndex"`
	Lat  float64 `gorm:"column:lat"`
	Lon  float64 `gorm:"column:lon"`
	Zoom int     `gorm:"column:zoom"`
}

// TableName specifies the table name for GORM
func (KnownCityModel) TableName() string {
	return "known_cities"
}

// substringMatch is the "contains or contained in" condition on a key column
const substringMatch = "? LIKE CONCAT('%%', %[1]s, '%%') OR %[1]s LIKE ?"

// MySQLStore implements KnownStore using MySQL with GORM
type MySQLStore struct {
	db *gorm.DB
}

// OpenMySQL opens a GORM connection with the pool settings shared by the
// MySQL-backed store and cache
//
// Parameters:
//   - dsn: Data Source Name (connection string)
//     Format: user:password@tcp(host:port)/dbname?parseTime=true
func OpenMySQL(dsn string) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	}

	db, err := gorm.Open(mysql.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL with GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	return db, nil
}

// NewMySQLStore creates a new MySQL store and makes sure both tables exist
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := OpenMySQL(dsn)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&KnownAddressModel{}, &KnownCityModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate known-location tables: %w", err)
	}

	return NewMySQLStoreWithDB(db), nil
}

// NewMySQLStoreWithDB wraps an already open connection
func NewMySQLStoreWithDB(db *gorm.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

// FindAddress implements KnownStore
//
// SELECT * FROM known_addresses WHERE address_key = ? ORDER BY id LIMIT 1
// then the substring condition in both directions.
func (s *MySQLStore) FindAddress(ctx context.Context, key string) (*models.KnownLocation, error) {
	key = geocode.Normalize(key)
	if key == "" {
		return nil, fmt.Errorf("address: %w", models.ErrStoreNotFound)
	}

	var record KnownAddressModel
	if err := s.first(ctx, &record, "address_key", key); err != nil {
		return nil, fmt.Errorf("address %q: %w", key, err)
	}

	return &models.KnownLocation{
		Key:     record.AddressKey,
		Lat:     record.Lat,
		Lon:     record.Lon,
		Type:    record.PlaceType,
		Display: record.Display,
		Zoom:    record.Zoom,
	}, nil
}

// FindCity implements KnownStore
func (s *MySQLStore) FindCity(ctx context.Context, name string) (*models.KnownCity, error) {
	name = geocode.Normalize(name)
	if name == "" {
		return nil, fmt.Errorf("city: %w", models.ErrStoreNotFound)
	}

	var record KnownCityModel
	if err := s.first(ctx, &record, "name", name); err != nil {
		return nil, fmt.Errorf("city %q: %w", name, err)
	}

	return &models.KnownCity{Name: record.Name, Lat: record.Lat, Lon: record.Lon, Zoom: record.Zoom}, nil
}

// first loads into dest the exact match on column, falling back to the
// first substring match in id order
func (s *MySQLStore) first(ctx context.Context, dest any, column, key string) error {
	db := s.db.WithContext(ctx)

	err := db.Where(column+" = ?", key).First(dest).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("database query failed: %w", err)
	}

	err = db.Where(fmt.Sprintf(substringMatch, column), key, "%"+key+"%").First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrStoreNotFound
	}
	if err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}
	return nil
}

// SaveAddresses implements Loader, upserting on the normalized key
func (s *MySQLStore) SaveAddresses(ctx context.Context, locations []models.KnownLocation) error {
	if len(locations) == 0 {
		return nil
	}

	records := make([]KnownAddressModel, 0, len(locations))
	for _, l := range locations {
		records = append(records, KnownAddressModel{
			AddressKey: geocode.Normalize(l.Key),
			Lat:        l.Lat,
			Lon:        l.Lon,
			PlaceType:  l.Type,
			Display:    l.Display,
			Zoom:       l.Zoom,
		})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"lat", "lon", "place_type", "display", "zoom"}),
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("failed to save known addresses: %w", err)
	}
	return nil
}

// SaveCities implements Loader, upserting on the normalized name
func (s *MySQLStore) SaveCities(ctx context.Context, cities []models.KnownCity) error {
	if len(cities) == 0 {
		return nil
	}

	records := make([]KnownCityModel, 0, len(cities))
	for _, c := range cities {
		records = append(records, KnownCityModel{Name: geocode.Normalize(c.Name), Lat: c.Lat, Lon: c.Lon, Zoom: c.Zoom})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"lat", "lon", "zoom"}),
	}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("failed to save known cities: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
