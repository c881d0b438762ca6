package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kentaro/oddsboard/internal/model"
)

// PostgresPredictionRepo はPostgreSQLを使用した予測リポジトリ。
type PostgresPredictionRepo struct {
	db *sql.DB
}

// NewPostgresPredictionRepo はPostgresPredictionRepoを生成する。
func NewPostgresPredictionRepo(db *sql.DB) *PostgresPredictionRepo {
	return &PostgresPredictionRepo{db: db}
}

// ListLatest は作成日時の新しい順に予測を取得する。
func (r *PostgresPredictionRepo) ListLatest(ctx context.Context, limit int) ([]model.Prediction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, league, match, kickoff,
		        odds_home, odds_draw, odds_away,
		        win_probability, confidence, tier
		 FROM predictions
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	var predictions []model.Prediction
	for rows.Next() {
		var p model.Prediction
		var eventID sql.NullString
		if err := rows.Scan(
			&p.ID, &eventID, &p.League, &p.Match, &p.Kickoff,
			&p.Odds.Home, &p.Odds.Draw, &p.Odds.Away,
			&p.WinProbability, &p.Confidence, &p.Tier,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		p.EventID = eventID.String
		predictions = append(predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}

	return predictions, nil
}

// DeleteOlderThan は作成日時がcutoffより古い予測を一括削除し、削除件数を返す。
func (r *PostgresPredictionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM predictions WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale predictions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ PredictionRepository = (*PostgresPredictionRepo)(nil)
