package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/evyataryagoni/geocoder/internal/config"
	"github.com/evyataryagoni/geocoder/internal/store"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Connections opens the MySQL and Redis connections on first use and shares
// them between the known store, the result cache and the rate limiter.
// Components built on shared connections must not be closed individually:
// Close releases every connection once.
type Connections struct {
	cfg *config.Config

	mu        sync.Mutex
	mysql     *gorm.DB
	redis     *redis.Client
	ownsMySQL bool
	ownsRedis bool
}

// NewConnections creates a lazy connection set for cfg
func NewConnections(cfg *config.Config) *Connections {
	return &Connections{cfg: cfg}
}

// UseRedis injects an already connected client. It is not closed by Close.
func (c *Connections) UseRedis(client *redis.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redis = client
	c.ownsRedis = false
}

// UseMySQL injects an already open connection. It is not closed by Close.
func (c *Connections) UseMySQL(db *gorm.DB) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mysql = db
	c.ownsMySQL = false
}

// MySQL returns the shared GORM connection, opening it from MYSQL_DSN if needed
func (c *Connections) MySQL() (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mysql != nil {
		return c.mysql, nil
	}
	if c.cfg.MySQLDSN == "" {
		return nil, errors.New("MYSQL_DSN is required for the mysql backend")
	}

	db, err := store.OpenMySQL(c.cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	c.mysql = db
	c.ownsMySQL = true
	return db, nil
}

// Redis returns the shared Redis client, dialing REDIS_ADDR if needed
func (c *Connections) Redis(ctx context.Context) (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.redis != nil {
		return c.redis, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.cfg.RedisAddr,
		Password: c.cfg.RedisPassword,
		DB:       c.cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", c.cfg.RedisAddr, err)
	}
	c.redis = client
	c.ownsRedis = true
	return client, nil
}

// Close closes the connections this set opened
func (c *Connections) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.redis != nil && c.ownsRedis {
		errs = append(errs, c.redis.Close())
	}
	if c.mysql != nil && c.ownsMySQL {
		if sqlDB, err := c.mysql.DB(); err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, sqlDB.Close())
		}
	}
	c.redis, c.mysql = nil, nil
	return errors.Join(errs...)
}
