// Package geocache stores forward geocoding results so repeated address
// searches skip Nominatim.
package geocache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mohammed-shakir/bmlt-go/pkg/bmlt"
)

// Open connects to Postgres through the pgx driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open geocode cache database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify geocode cache connection: %w", err)
	}
	return db, nil
}

// SQLCache keeps lookups in the geocode_cache table.
type SQLCache struct {
	DB *sql.DB
}

func NewSQLCache(db *sql.DB) *SQLCache {
	return &SQLCache{DB: db}
}

func (s *SQLCache) InitSchema(ctx context.Context) error {
	if s.DB == nil {
		return errors.New("geocode cache: db is nil")
	}
	_, err := s.DB.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		key          TEXT PRIMARY KEY,
		lat          DOUBLE PRECISION NOT NULL,
		lon          DOUBLE PRECISION NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		raw          JSONB,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`)
	if err != nil {
		return fmt.Errorf("create geocode_cache table: %w", err)
	}
	return nil
}

func (s *SQLCache) GetGeocode(ctx context.Context, key string) (bmlt.GeocodeResult, bool, error) {
	if s.DB == nil {
		return bmlt.GeocodeResult{}, false, errors.New("geocode cache: db is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return bmlt.GeocodeResult{}, false, nil
	}

	var (
		res bmlt.GeocodeResult
		raw []byte
	)
	err := s.DB.QueryRowContext(ctx, `
	SELECT lat, lon, display_name, raw
	FROM geocode_cache
	WHERE key = $1;
	`, key).Scan(&res.Coordinates.Latitude, &res.Coordinates.Longitude, &res.DisplayName, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return bmlt.GeocodeResult{}, false, nil
	}
	if err != nil {
		return bmlt.GeocodeResult{}, false, fmt.Errorf("get geocode cache: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &res.RawData); err != nil {
			return bmlt.GeocodeResult{}, false, fmt.Errorf("get geocode cache: decode raw: %w", err)
		}
	}
	return res, true, nil
}

func (s *SQLCache) PutGeocode(ctx context.Context, key string, res bmlt.GeocodeResult) error {
	if s.DB == nil {
		return errors.New("geocode cache: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("insert geocode cache: empty key")
	}

	var raw []byte
	if res.RawData != nil {
		b, err := json.Marshal(res.RawData)
		if err != nil {
			return fmt.Errorf("insert geocode cache: encode raw: %w", err)
		}
		raw = b
	}

	_, err := s.DB.ExecContext(ctx, `
	INSERT INTO geocode_cache (key, lat, lon, display_name, raw, updated_at)
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (key) DO UPDATE
	SET lat = EXCLUDED.lat,
		lon = EXCLUDED.lon,
		display_name = EXCLUDED.display_name,
		raw = EXCLUDED.raw,
		updated_at = now();
	`, key, res.Coordinates.Latitude, res.Coordinates.Longitude, res.DisplayName, raw)
	if err != nil {
		return fmt.Errorf("insert geocode cache key=%q: %w", key, err)
	}
	return nil
}
