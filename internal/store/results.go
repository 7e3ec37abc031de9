package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ResultRepository stores finished games.
type ResultRepository interface {
	SaveResult(ctx context.Context, res Result) error
	Recent(ctx context.Context, limit int) ([]Result, error)
	Close() error
}

// Result is one finished game. GameID is unique per room and game.
type Result struct {
	GameID      string    `json:"gameId"`
	RoomID      string    `json:"roomId"`
	White       Player    `json:"white"`
	Black       Player    `json:"black"`
	Result      string    `json:"result"`
	Termination string    `json:"termination"`
	MovesUCI    []string  `json:"movesUci"`
	MovesSAN    []string  `json:"movesSan"`
	ECO         string    `json:"eco,omitempty"`
	PGN         string    `json:"pgn"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt"`
}

// ResultFromRecord derives the result row of a terminated record.
func ResultFromRecord(rec *Record) Result {
	res := Result{
		GameID:      rec.ID + "#" + strconv.FormatUint(rec.Version, 10),
		RoomID:      rec.ID,
		Result:      rec.Result,
		Termination: rec.Termination,
		MovesUCI:    rec.MovesUCI,
		MovesSAN:    rec.MovesSAN,
		ECO:         rec.ECO,
		StartedAt:   rec.CreatedAt,
		EndedAt:     rec.UpdatedAt,
	}
	if rec.White != nil {
		res.White = *rec.White
	}
	if rec.Black != nil {
		res.Black = *rec.Black
	}
	res.PGN = buildPGN(rec)
	return res
}

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// SQLRepository is a ResultRepository over lib/pq or go-sqlite3.
type SQLRepository struct {
	db      *sql.DB
	dialect dialect
}

// OpenResults opens postgres://, postgresql://, sqlite:// or file: URLs and ensures the schema.
func OpenResults(ctx context.Context, databaseURL string) (*SQLRepository, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	var (
		driver, dsn string
		d           dialect
	)
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		driver, dsn, d = "postgres", databaseURL, dialectPostgres
	case strings.HasPrefix(databaseURL, "sqlite://"):
		driver, dsn, d = "sqlite3", strings.TrimPrefix(databaseURL, "sqlite://"), dialectSQLite
	case strings.HasPrefix(databaseURL, "file:"):
		driver, dsn, d = "sqlite3", databaseURL, dialectSQLite
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", databaseURL)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if d == dialectSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(8)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	r := &SQLRepository{db: db, dialect: d}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLRepository) migrate(ctx context.Context) error {
	ts := "TIMESTAMPTZ"
	if r.dialect == dialectSQLite {
		ts = "TIMESTAMP"
	}
	q := `CREATE TABLE IF NOT EXISTS arena_results (
		game_id     TEXT PRIMARY KEY,
		room_id     TEXT NOT NULL,
		white_id    TEXT NOT NULL,
		white_name  TEXT NOT NULL,
		black_id    TEXT NOT NULL,
		black_name  TEXT NOT NULL,
		result      TEXT NOT NULL,
		termination TEXT NOT NULL,
		moves_uci   TEXT NOT NULL,
		moves_san   TEXT NOT NULL,
		eco         TEXT NOT NULL,
		pgn         TEXT NOT NULL,
		started_at  ` + ts + ` NOT NULL,
		ended_at    ` + ts + ` NOT NULL,
		duration_ms BIGINT NOT NULL
	)`
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create arena_results: %w", err)
	}
	return nil
}

// SaveResult upserts a finished game.
func (r *SQLRepository) SaveResult(ctx context.Context, res Result) error {
	movesUCI, err := json.Marshal(res.MovesUCI)
	if err != nil {
		return err
	}
	movesSAN, err := json.Marshal(res.MovesSAN)
	if err != nil {
		return err
	}
	duration := max(res.EndedAt.Sub(res.StartedAt).Milliseconds(), 0)

	q := `INSERT INTO arena_results (
		game_id, room_id, white_id, white_name, black_id, black_name,
		result, termination, moves_uci, moves_san, eco, pgn,
		started_at, ended_at, duration_ms
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT (game_id) DO UPDATE SET
		result=EXCLUDED.result,
		termination=EXCLUDED.termination,
		moves_uci=EXCLUDED.moves_uci,
		moves_san=EXCLUDED.moves_san,
		eco=EXCLUDED.eco,
		pgn=EXCLUDED.pgn,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, r.rebind(q),
		res.GameID, res.RoomID,
		res.White.ID, res.White.Name,
		res.Black.ID, res.Black.Name,
		res.Result, res.Termination, string(movesUCI), string(movesSAN), res.ECO, res.PGN,
		res.StartedAt.UTC(), res.EndedAt.UTC(), duration,
	)
	if err != nil {
		return fmt.Errorf("save result %s: %w", res.GameID, err)
	}
	return nil
}

// Recent returns the newest results first.
func (r *SQLRepository) Recent(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT game_id, room_id, white_id, white_name, black_id, black_name,
		result, termination, moves_uci, moves_san, eco, pgn, started_at, ended_at
		FROM arena_results ORDER BY ended_at DESC, game_id LIMIT ?`
	rows, err := r.db.QueryContext(ctx, r.rebind(q), limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var (
			res                Result
			movesUCI, movesSAN string
		)
		if err := rows.Scan(&res.GameID, &res.RoomID, &res.White.ID, &res.White.Name, &res.Black.ID, &res.Black.Name,
			&res.Result, &res.Termination, &movesUCI, &movesSAN, &res.ECO, &res.PGN, &res.StartedAt, &res.EndedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(movesUCI), &res.MovesUCI); err != nil {
			return nil, fmt.Errorf("decode moves_uci: %w", err)
		}
		if err := json.Unmarshal([]byte(movesSAN), &res.MovesSAN); err != nil {
			return nil, fmt.Errorf("decode moves_san: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// rebind rewrites ? placeholders to $n for postgres.
func (r *SQLRepository) rebind(q string) string {
	if r.dialect != dialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
