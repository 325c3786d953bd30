package db

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGConfig são as variáveis DB_* usadas pela API principal.
type PGConfig struct {
	User string
	Pass string
	Name string
	Host string
	Port string
}

func (c PGConfig) URL() string {
	// encode para evitar erro de URL
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Pass),
		url.QueryEscape(c.Host),
		c.Port,
		url.QueryEscape(c.Name),
	)
}

type Database struct {
	pool *pgxpool.Pool
}

func NewPool(ctx context.Context, cfg PGConfig) (*Database, error) {
	log.Printf("Conectando em %s:%s/%s ...", cfg.Host, cfg.Port, cfg.Name)
	return NewPoolFromURL(ctx, cfg.URL())
}

func NewPoolFromURL(ctx context.Context, dsn string) (*Database, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}

	// fila é pequena; poucas conexões bastam
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	log.Println("Banco conectado")
	return &Database{pool: pool}, nil
}

func (d *Database) Pool() *pgxpool.Pool {
	return d.pool
}

func (d *Database) Close() {
	log.Printf("Encerrando conexão....")
	d.pool.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}
