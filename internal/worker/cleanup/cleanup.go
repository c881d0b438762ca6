// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れセッション（猶予期間超過分）と保持期間を超過した予測データを
// 定期バッチで削除する。セッションはリーダー側の遅延削除の補完であり、
// このジョブが止まっても整合性は損なわれない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションの削除を抽象化するインターフェース。
type SessionPurger interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PredictionPurger は古い予測データの削除を抽象化するインターフェース。
type PredictionPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job は期限切れデータの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type Job struct {
	sessions    SessionPurger
	predictions PredictionPurger
	logger      *slog.Logger

	// SessionGrace は期限切れ後もセッション行を残す猶予期間（デフォルト: 24h）。
	SessionGrace time.Duration
	// PredictionTTL は予測データの保持期間（デフォルト: 7日）。
	PredictionTTL time.Duration

	now func() time.Time
}

// NewJob は新しいJobを生成する。
func NewJob(sessions SessionPurger, predictions PredictionPurger, logger *slog.Logger) *Job {
	return &Job{
		sessions:      sessions,
		predictions:   predictions,
		logger:        logger,
		SessionGrace:  24 * time.Hour,
		PredictionTTL: 7 * 24 * time.Hour,
		now:           time.Now,
	}
}

// Run は期限切れセッションと古い予測データを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := j.now()

	sessionsDeleted, err := j.sessions.DeleteExpiredBefore(ctx, start.Add(-j.SessionGrace))
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	predictionsDeleted, err := j.predictions.DeleteOlderThan(ctx, start.Add(-j.PredictionTTL))
	if err != nil {
		j.logger.Error("古い予測データの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("古い予測データの削除に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("sessions_deleted", sessionsDeleted),
		slog.Int64("predictions_deleted", predictionsDeleted),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔でRunを繰り返し実行する。ctxのキャンセルで停止する。
// 起動直後に1回実行し、以降はinterval間隔で実行する。
// 個々の実行エラーはログに記録し、ループは継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップジョブの実行に失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			j.logger.Info("クリーンアップループを停止します")
			return
		}
	}
}
