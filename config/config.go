package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MaldivaSky/mercadinhosys-sub003/db"
)

const (
	QueueSQLite   = "sqlite"
	QueuePostgres = "postgres"
	QueueMemory   = "memory"
)

type Config struct {
	Port string

	APIURL        string
	APIToken      string
	SubmitPath    string
	SubmitTimeout time.Duration

	JWTSecret string

	QueueDriver string
	QueuePath   string
	Postgres    db.PGConfig

	ProbeInterval   time.Duration
	LocationTimeout time.Duration
	DeviceInfo      string
	StoreLat        *float64
	StoreLng        *float64

	CorsOrigins []string

	MinIO MinIOConfig
}

type MinIOConfig struct {
	Host      string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (m MinIOConfig) Enabled() bool { return m.Host != "" }

// Load lê o .env (se existir) e as variáveis de ambiente.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		Port:        getenv("PORT", "8081"),
		APIURL:      strings.TrimSpace(os.Getenv("PONTO_API_URL")),
		APIToken:    os.Getenv("PONTO_API_TOKEN"),
		SubmitPath:  getenv("PONTO_SUBMIT_PATH", "/api/ponto"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		QueueDriver: strings.ToLower(getenv("PONTO_QUEUE_DRIVER", QueueSQLite)),
		QueuePath:   getenv("PONTO_QUEUE_PATH", "ponto-queue.db"),
		Postgres: db.PGConfig{
			User: os.Getenv("DB_USER"),
			Pass: os.Getenv("DB_PASS"),
			Name: os.Getenv("DB_NAME"),
			Host: os.Getenv("DB_HOST"),
			Port: getenv("DB_PORT", "5432"),
		},
		DeviceInfo:  os.Getenv("PONTO_DEVICE_INFO"),
		CorsOrigins: splitList(getenv("CORS_ORIGINS", "http://localhost:3000")),
		MinIO: MinIOConfig{
			Host:      os.Getenv("MINIO_HOST"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getenv("MINIO_BUCKET", "ponto-fotos"),
		},
	}

	var errs []error

	if cfg.APIURL == "" {
		errs = append(errs, errors.New("PONTO_API_URL is required"))
	}
	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	switch cfg.QueueDriver {
	case QueueSQLite, QueueMemory:
	case QueuePostgres:
		if cfg.Postgres.Host == "" || cfg.Postgres.Name == "" {
			errs = append(errs, errors.New("DB_HOST and DB_NAME are required for PONTO_QUEUE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid PONTO_QUEUE_DRIVER %q (sqlite|postgres|memory)", cfg.QueueDriver))
	}

	var err error
	if cfg.SubmitTimeout, err = duration("PONTO_SUBMIT_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.ProbeInterval, err = duration("PONTO_PROBE_INTERVAL", 15*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.LocationTimeout, err = duration("PONTO_LOCATION_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.StoreLat, err = coordinate("PONTO_STORE_LAT", 90); err != nil {
		errs = append(errs, err)
	}
	if cfg.StoreLng, err = coordinate("PONTO_STORE_LNG", 180); err != nil {
		errs = append(errs, err)
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if cfg.MinIO.UseSSL, err = strconv.ParseBool(v); err != nil {
			errs = append(errs, fmt.Errorf("invalid MINIO_USE_SSL %q", v))
		}
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return d, nil
}

func coordinate(key string, limit float64) (*float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < -limit || f > limit {
		return nil, fmt.Errorf("invalid %s %q", key, v)
	}
	return &f, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
