package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Config holds database configuration
type Config struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	IdleConnections int           `mapstructure:"idle_connections"`
	MaxLifetime     time.Duration `mapstructure:"max_lifetime"`
}

// Client manages database connections and operations
type Client struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewClient creates a new database client with connection pool
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if config.MaxConnections == 0 {
		config.MaxConnections = 25
	}
	if config.IdleConnections == 0 {
		config.IdleConnections = 5
	}
	if config.MaxLifetime == 0 {
		config.MaxLifetime = 5 * time.Minute
	}
	if config.SSLMode == "" {
		config.SSLMode = "require"
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetMaxIdleConns(config.IdleConnections)
	db.SetConnMaxLifetime(config.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database client initialized",
		zap.String("host", config.Host),
		zap.Int("max_connections", config.MaxConnections),
	)

	return &Client{db: db, logger: logger}, nil
}

// NewClientFromDB wraps an existing connection; used by tests.
func NewClientFromDB(db *sqlx.DB, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{db: db, logger: logger}
}

// Ping verifies connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close shuts down the connection pool.
func (c *Client) Close() error {
	c.logger.Info("Closing database client")
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// DB returns the underlying connection for direct queries.
func (c *Client) DB() *sqlx.DB {
	return c.db
}
