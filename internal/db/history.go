package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reop/addressfinder/internal/intent"
	"github.com/reop/addressfinder/internal/logger"
	"github.com/reop/addressfinder/internal/session"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// HistoryStore 는 세션 검색/선택 이력을 append-only로 남기는 감사 로그
type HistoryStore struct {
	pool *pgxpool.Pool
	q    querier
}

// New 새로운 DB 연결 생성
func New(ctx context.Context, url string) (*HistoryStore, error) {
	log := logger.GetLogger("db")

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// 연결 풀 설정
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// 연결 테스트
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("History database connection established")
	return &HistoryStore{pool: pool, q: pool}, nil
}

// Ping readiness check
func (s *HistoryStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *HistoryStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS address_search_history (
	id           BIGSERIAL PRIMARY KEY,
	session_id   TEXT        NOT NULL,
	query        TEXT        NOT NULL,
	result_count INTEGER     NOT NULL,
	mode         TEXT        NOT NULL,
	intent       TEXT        NOT NULL,
	searched_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_address_search_history_session ON address_search_history (session_id, searched_at);

CREATE TABLE IF NOT EXISTS address_selection_history (
	id             BIGSERIAL PRIMARY KEY,
	session_id     TEXT        NOT NULL,
	original_query TEXT        NOT NULL,
	place_id       TEXT        NOT NULL,
	description    TEXT        NOT NULL,
	mode           TEXT        NOT NULL,
	intent         TEXT        NOT NULL,
	selection      JSONB       NOT NULL,
	selected_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_address_selection_history_session ON address_selection_history (session_id, selected_at);
`

// EnsureSchema creates the history tables when missing.
func (s *HistoryStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("history schema 생성 실패: %w", err)
	}
	return nil
}

func (s *HistoryStore) RecordSearch(ctx context.Context, sessionID string, e session.SearchHistoryEntry) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO address_search_history (session_id, query, result_count, mode, intent, searched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sessionID, e.Query, e.ResultCount, string(e.Context.Mode), e.Context.Intent.String(), e.Timestamp)
	if err != nil {
		return fmt.Errorf("search history 저장 실패: %w", err)
	}
	return nil
}

func (s *HistoryStore) RecordSelection(ctx context.Context, sessionID string, e session.SelectionHistoryEntry) error {
	payload, err := json.Marshal(e.SelectedAddress)
	if err != nil {
		return fmt.Errorf("selection encode 실패: %w", err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO address_selection_history
			(session_id, original_query, place_id, description, mode, intent, selection, selected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sessionID, e.OriginalQuery, e.SelectedAddress.PlaceID, e.SelectedAddress.Description,
		string(e.Context.Mode), e.Context.Intent.String(), payload, e.Timestamp)
	if err != nil {
		return fmt.Errorf("selection history 저장 실패: %w", err)
	}
	return nil
}

// Selections returns the most recent logged selections for a session,
// oldest first.
func (s *HistoryStore) Selections(ctx context.Context, sessionID string, limit int) ([]session.SelectionHistoryEntry, error) {
	if limit <= 0 {
		limit = session.DefaultHistoryLimit
	}
	rows, err := s.q.Query(ctx, `
		SELECT original_query, mode, intent, selection, selected_at
		FROM (
			SELECT * FROM address_selection_history
			WHERE session_id = $1
			ORDER BY selected_at DESC
			LIMIT $2
		) recent
		ORDER BY selected_at ASC
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query selection history: %w", err)
	}
	defer rows.Close()

	var out []session.SelectionHistoryEntry
	for rows.Next() {
		var (
			e              session.SelectionHistoryEntry
			mode, intentID string
			payload        []byte
		)
		if err := rows.Scan(&e.OriginalQuery, &mode, &intentID, &payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan selection history: %w", err)
		}
		if err := json.Unmarshal(payload, &e.SelectedAddress); err != nil {
			return nil, fmt.Errorf("failed to decode selection: %w", err)
		}
		e.Context = session.Context{Mode: session.ParseMode(mode), Intent: intent.Parse(intentID)}
		out = append(out, e)
	}
	return out, rows.Err()
}
