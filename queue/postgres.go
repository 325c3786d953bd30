package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MaldivaSky/mercadinhosys-sub003/db"
	"github.com/MaldivaSky/mercadinhosys-sub003/models"
)

const opTimeout = 5 * time.Second

// chave do pg_advisory_lock que serializa os drains da fila compartilhada
const drainLockKey int64 = 0x706f6e746f

const schema = `
CREATE TABLE IF NOT EXISTS ponto_queue (
	seq        BIGSERIAL PRIMARY KEY,
	event_id   TEXT NOT NULL UNIQUE,
	type       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres is the queue for terminals that share a store database. Drains are
// serialised across terminals through LockDrain.
type Postgres struct {
	database *db.Database
}

func NewPostgres(ctx context.Context, database *db.Database) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := database.Pool().Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("create ponto_queue: %w", err)
	}
	return &Postgres{database: database}, nil
}

func (p *Postgres) Append(ctx context.Context, ev models.AttendanceEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err = p.database.Pool().Exec(ctx, `
		INSERT INTO ponto_queue (event_id, type, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`, ev.ID, string(ev.Type), payload)
	return err
}

func (p *Postgres) PeekFront(ctx context.Context) (models.AttendanceEvent, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var id string
	var payload []byte
	err := p.database.Pool().QueryRow(ctx, `
		SELECT event_id, payload FROM ponto_queue
		ORDER BY seq
		LIMIT 1
	`).Scan(&id, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AttendanceEvent{}, false, nil
	}
	if err != nil {
		return models.AttendanceEvent{}, false, err
	}

	ev, err := decodeRow(id, payload)
	if err != nil {
		return models.AttendanceEvent{}, false, err
	}
	return ev, true, nil
}

func (p *Postgres) PopFront(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := p.database.Pool().Exec(ctx, `DELETE FROM ponto_queue WHERE event_id = $1`, eventID)
	return err
}

// LockDrain takes a session advisory lock so only one terminal drains the
// shared queue at a time. The lock lives on a dedicated pool connection until
// release is called.
func (p *Postgres) LockDrain(ctx context.Context) (func(), bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	conn, err := p.database.Pool().Acquire(ctx)
	if err != nil {
		return nil, false, err
	}

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, drainLockKey).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, err
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}

	release := func() {
		uctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if _, err := conn.Exec(uctx, `SELECT pg_advisory_unlock($1)`, drainLockKey); err != nil {
			// sem unlock a sessão não pode voltar ao pool com o lock preso
			_ = conn.Conn().Close(uctx)
		}
		conn.Release()
	}
	return release, true, nil
}

// Clear wipes the table. Drains never call it on this store.
func (p *Postgres) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := p.database.Pool().Exec(ctx, `DELETE FROM ponto_queue`)
	return err
}

func (p *Postgres) LoadAll(ctx context.Context) ([]models.AttendanceEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := p.database.Pool().Query(ctx, `
		SELECT event_id, payload FROM ponto_queue
		ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AttendanceEvent{}
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		ev, err := decodeRow(id, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (p *Postgres) Len(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var n int
	err := p.database.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM ponto_queue`).Scan(&n)
	return n, err
}
