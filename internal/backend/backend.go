// Package backend builds the single handle to every external collaborator
// (Postgres, Redis, the download bucket, sessions and mail) from config.
// It is created once in cmd/server and passed explicitly to each component.
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/leadfunnel/internal/auth"
	"github.com/ignite/leadfunnel/internal/config"
	"github.com/ignite/leadfunnel/internal/mailer"
	"github.com/ignite/leadfunnel/internal/pkg/distlock"
	"github.com/ignite/leadfunnel/internal/repository/postgres"
	"github.com/ignite/leadfunnel/internal/storage"
)

const (
	migrateLockKey = "schema-migrate"
	migrateLockTTL = 2 * time.Minute
	pingTimeout    = 3 * time.Second
)

// Client holds the configured collaborators. Redis is nil when not
// configured or unreachable.
type Client struct {
	DB       *sql.DB
	Redis    *redis.Client
	Bucket   storage.Bucket
	Sessions auth.SessionStore
	Mailer   *mailer.Mailer

	stopSweep context.CancelFunc
}

// Open connects everything cfg describes. Postgres must be reachable; Redis
// is optional and falls back to in-memory sessions and advisory locks.
func Open(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Println("Database connected")

	c := &Client{DB: db}
	c.Redis = connectRedis(ctx, cfg.Redis.URL)

	c.Bucket, err = storage.New(ctx, cfg.Storage)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.Printf("Storage initialized: type=%s", cfg.Storage.Type)

	c.Mailer, err = mailer.New(ctx, cfg.Mailer, mailer.WithLinkMinutes(cfg.Auth.LoginLinkMinutes))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init mailer: %w", err)
	}
	log.Printf("Mailer initialized: provider=%s", cfg.Mailer.Provider)

	c.Sessions = c.sessionStore()
	return c, nil
}

func connectRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		log.Println("Redis not configured (REDIS_URL not set), using in-memory sessions and PG advisory locks")
		return nil
	}
	var client *redis.Client
	if opts, err := redis.ParseURL(url); err != nil {
		client = redis.NewClient(&redis.Options{Addr: url})
	} else {
		client = redis.NewClient(opts)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v, falling back to in-memory sessions", err)
		client.Close()
		return nil
	}
	log.Println("Redis connected")
	return client
}

// sessionStore prefers Redis so sessions survive restarts and are shared
// between replicas.
func (c *Client) sessionStore() auth.SessionStore {
	if c.Redis != nil {
		return auth.NewRedisSessionStore(c.Redis)
	}
	mem := auth.NewMemorySessionStore()
	ctx, cancel := context.WithCancel(context.Background())
	c.stopSweep = cancel
	mem.CleanupExpiredSessions(ctx, 5*time.Minute)
	return mem
}

// Migrate applies the schema while holding the migration lock, so
// replicas booting together do not race.
func (c *Client) Migrate(ctx context.Context) error {
	lock := distlock.New(c.Redis, c.DB, migrateLockKey, migrateLockTTL)
	return distlock.Do(ctx, lock, time.Second, func(ctx context.Context) error {
		return postgres.Migrate(ctx, c.DB)
	})
}

// Close releases every connection. Safe to call on a partly opened client.
func (c *Client) Close() error {
	if c.stopSweep != nil {
		c.stopSweep()
	}
	if c.Redis != nil {
		c.Redis.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
