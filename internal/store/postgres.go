package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/signaldesk/internal/contracts"
)

//go:embed schema.sql
var schemaSQL string

// Postgres is the pgx-backed Repository
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ Repository = (*Postgres)(nil)

// NewPostgres 새 저장소 생성
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, now: time.Now}
}

// Migrate creates missing tables and indexes
func (r *Postgres) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks the pool
func (r *Postgres) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// =============================================================================
// Stocks
// =============================================================================

// ListStocks 전체 종목 조회
func (r *Postgres) ListStocks(ctx context.Context) ([]contracts.Stock, error) {
	query := `
		SELECT id, name, market_id, status
		FROM stocks
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []contracts.Stock
	for rows.Next() {
		var s contracts.Stock
		if err := rows.Scan(&s.ID, &s.Name, &s.MarketID, &s.Status); err != nil {
			return nil, err
		}
		stocks = append(stocks, s)
	}

	return stocks, rows.Err()
}

// GetStock 종목 단건 조회
func (r *Postgres) GetStock(ctx context.Context, id string) (*contracts.Stock, error) {
	query := `
		SELECT id, name, market_id, status
		FROM stocks
		WHERE id = $1`

	var s contracts.Stock
	err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.Name, &s.MarketID, &s.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertStock 종목 등록/수정
func (r *Postgres) UpsertStock(ctx context.Context, s contracts.Stock) error {
	if s.Status == "" {
		s.Status = contracts.StockInactive
	}

	query := `
		INSERT INTO stocks (id, name, market_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			market_id = EXCLUDED.market_id,
			status = EXCLUDED.status,
			updated_at = now()`

	_, err := r.pool.Exec(ctx, query, s.ID, s.Name, s.MarketID, s.Status)
	return err
}

// =============================================================================
// Conclusions
// =============================================================================

// AddConclusion conclusion 추가 (항상 새 row)
func (r *Postgres) AddConclusion(ctx context.Context, c contracts.Conclusion) (contracts.Conclusion, error) {
	id := uuid.New()
	c.ID = id.String()
	c.CreatedAt = r.now().UTC()

	query := `
		INSERT INTO conclusions (id, stock_id, trade_date, prediction, confidence, rationale, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		id, c.StockID, c.Date, c.Prediction, c.Confidence, c.Rationale, c.CreatedAt)
	if err != nil {
		return contracts.Conclusion{}, err
	}
	return c, nil
}

// ListConclusions 종목별 conclusion 조회 (created_at, id 순)
func (r *Postgres) ListConclusions(ctx context.Context, stockID string) ([]contracts.Conclusion, error) {
	query := `
		SELECT id::text, stock_id, trade_date, prediction, confidence, rationale, created_at
		FROM conclusions
		WHERE stock_id = $1
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, stockID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.Conclusion
	for rows.Next() {
		var c contracts.Conclusion
		if err := rows.Scan(&c.ID, &c.StockID, &c.Date, &c.Prediction, &c.Confidence, &c.Rationale, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, rows.Err()
}

// =============================================================================
// Price points
// =============================================================================

// UpsertPricePoint (stock, date, kind) 기준 upsert
func (r *Postgres) UpsertPricePoint(ctx context.Context, p contracts.PricePoint) error {
	query := `
		INSERT INTO price_points (stock_id, trade_date, kind, value, content)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (stock_id, trade_date, kind) DO UPDATE SET
			value = EXCLUDED.value,
			content = EXCLUDED.content,
			updated_at = now()`

	_, err := r.pool.Exec(ctx, query, p.StockID, p.Date, p.Kind, p.Value, p.Content)
	return err
}

// ListPricePoints 종목별 가격 관측 조회
func (r *Postgres) ListPricePoints(ctx context.Context, stockID string) ([]contracts.PricePoint, error) {
	query := `
		SELECT stock_id, trade_date, kind, value, content
		FROM price_points
		WHERE stock_id = $1
		ORDER BY trade_date, kind`

	rows, err := r.pool.Query(ctx, query, stockID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.PricePoint
	for rows.Next() {
		var p contracts.PricePoint
		if err := rows.Scan(&p.StockID, &p.Date, &p.Kind, &p.Value, &p.Content); err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

// =============================================================================
// Highlights
// =============================================================================

// UpsertHighlight (stock, date) 기준 upsert - 기존 id 유지
func (r *Postgres) UpsertHighlight(ctx context.Context, h contracts.Highlight) error {
	query := `
		INSERT INTO highlights
			(id, stock_id, trade_date, prediction, confidence, rationale,
			 opening, prev_close, prev_date, diff, outcome, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (stock_id, trade_date) DO UPDATE SET
			prediction = EXCLUDED.prediction,
			confidence = EXCLUDED.confidence,
			rationale = EXCLUDED.rationale,
			opening = EXCLUDED.opening,
			prev_close = EXCLUDED.prev_close,
			prev_date = EXCLUDED.prev_date,
			diff = EXCLUDED.diff,
			outcome = EXCLUDED.outcome,
			summary = EXCLUDED.summary,
			updated_at = now()`

	_, err := r.pool.Exec(ctx, query,
		h.ID, h.StockID, h.Date, h.Prediction, h.Confidence, h.Rationale,
		h.Opening, h.PrevClose, h.PrevDate, h.Diff, h.Outcome, h.Summary)
	return err
}

// HighlightIDs 종목의 date -> highlight id
func (r *Postgres) HighlightIDs(ctx context.Context, stockID string) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT trade_date, id FROM highlights WHERE stock_id = $1`, stockID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]string)
	for rows.Next() {
		var date, id string
		if err := rows.Scan(&date, &id); err != nil {
			return nil, err
		}
		ids[date] = id
	}

	return ids, rows.Err()
}

// ListHighlights 종목별 highlight 조회 (최신 날짜 우선)
func (r *Postgres) ListHighlights(ctx context.Context, stockID string) ([]contracts.Highlight, error) {
	query := `
		SELECT id, stock_id, trade_date, prediction, confidence, rationale,
			   opening, prev_close, prev_date, diff, outcome, summary
		FROM highlights
		WHERE stock_id = $1
		ORDER BY trade_date DESC`

	rows, err := r.pool.Query(ctx, query, stockID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.Highlight
	for rows.Next() {
		var h contracts.Highlight
		if err := rows.Scan(
			&h.ID, &h.StockID, &h.Date, &h.Prediction, &h.Confidence, &h.Rationale,
			&h.Opening, &h.PrevClose, &h.PrevDate, &h.Diff, &h.Outcome, &h.Summary,
		); err != nil {
			return nil, err
		}
		out = append(out, h)
	}

	return out, rows.Err()
}
