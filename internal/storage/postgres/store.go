// Пакет postgres реализует репозитории магазина поверх PostgreSQL.
// Все репозитории делят один пул подключений через Store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultConnTimeout = 5 * time.Second

// poolConfig описывает настройки пула подключений.
type poolConfig struct {
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	connMaxIdleTime time.Duration
}

func defaultPoolConfig() poolConfig {
	return poolConfig{
		maxOpenConns:    25,
		maxIdleConns:    25,
		connMaxLifetime: 30 * time.Minute,
		connMaxIdleTime: 5 * time.Minute,
	}
}

// OpenOption настраивает пул подключений при открытии Store.
type OpenOption func(*poolConfig)

// WithMaxOpenConns задаёт предел открытых подключений пула.
func WithMaxOpenConns(n int) OpenOption {
	return func(cfg *poolConfig) {
		if n > 0 {
			cfg.maxOpenConns = n
		}
	}
}

// WithMaxIdleConns задаёт предел простаивающих подключений пула.
func WithMaxIdleConns(n int) OpenOption {
	return func(cfg *poolConfig) {
		if n >= 0 {
			cfg.maxIdleConns = n
		}
	}
}

// WithConnMaxLifetime задаёт максимальное время жизни подключения.
func WithConnMaxLifetime(d time.Duration) OpenOption {
	return func(cfg *poolConfig) {
		if d > 0 {
			cfg.connMaxLifetime = d
		}
	}
}

// Store оборачивает SQL-подключение к PostgreSQL для репозиториев магазина.
type Store struct {
	db *sql.DB
}

// Open открывает подключение через pgx stdlib драйвер и проверяет
// доступность базы первым ping-ом.
func Open(ctx context.Context, dsn string, options ...OpenOption) (*Store, error) {
	cfg := defaultPoolConfig()
	for _, option := range options {
		option(&cfg)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.maxOpenConns)
	db.SetMaxIdleConns(cfg.maxIdleConns)
	db.SetConnMaxLifetime(cfg.connMaxLifetime)
	db.SetConnMaxIdleTime(cfg.connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// DB возвращает raw SQL DB: репозитории строятся поверх одного пула.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции; используется автоприменением
// схемы при старте сервиса.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
