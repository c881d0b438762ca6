// Package prediction はAI予測データの取得とプラン別の出し分けを提供する。
// データソースは オッズAPI → DB内の予測行 → 組み込みモック の順でフォールバックする。
// 外部APIの失敗でエンドポイントがエラーになることはない。
package prediction

import (
	"context"
	"log/slog"
	"time"

	"github.com/kentaro/oddsboard/internal/model"
	"github.com/kentaro/oddsboard/internal/repository"
)

// maxPredictions は1レスポンスあたりの最大予測数。
const maxPredictions = 6

// freeTierCount は無料枠として公開する予測数。先頭N件がfree、残りはpremium。
const freeTierCount = 2

// OddsFetcher はオッズAPIクライアントのインターフェース。
type OddsFetcher interface {
	FetchOdds(ctx context.Context) ([]OddsEvent, error)
}

// Service は予測データの取得ロジックを提供する。
// fetcherとrepoはどちらもnil許容で、nilのソースはスキップされる。
type Service struct {
	fetcher OddsFetcher
	repo    repository.PredictionRepository
}

// NewService はServiceを生成する。
func NewService(fetcher OddsFetcher, repo repository.PredictionRepository) *Service {
	return &Service{fetcher: fetcher, repo: repo}
}

// List は予測一覧を取得し、購読状態に応じてプレミアム予測を伏せて返す。
func (s *Service) List(ctx context.Context, subscribed bool) []model.Prediction {
	predictions := s.fetch(ctx)
	if subscribed {
		return predictions
	}

	// 未購読ユーザーにはプレミアム予測の中身を伏せる
	gated := make([]model.Prediction, len(predictions))
	for i, p := range predictions {
		if p.Tier == model.TierPremium {
			p.Odds = model.Odds{}
			p.WinProbability = 0
			p.Confidence = 0
			p.Locked = true
		}
		gated[i] = p
	}
	return gated
}

// fetch はフォールバックチェーンに従って予測データを取得する。
func (s *Service) fetch(ctx context.Context) []model.Prediction {
	if s.fetcher != nil {
		events, err := s.fetcher.FetchOdds(ctx)
		if err != nil {
			slog.Warn("odds fetch failed, falling back",
				slog.String("error", err.Error()),
			)
		} else if len(events) > 0 {
			return fromOddsEvents(events)
		}
	}

	if s.repo != nil {
		stored, err := s.repo.ListLatest(ctx, maxPredictions)
		if err != nil {
			slog.Warn("stored predictions fetch failed, falling back",
				slog.String("error", err.Error()),
			)
		} else if len(stored) > 0 {
			return stored
		}
	}

	return mockPredictions()
}

// fromOddsEvents はオッズAPIのレスポンスを予測に変換する。
// 勝率はホームオッズのインプライド確率から導出し、自信度は勝率に比例させる。
func fromOddsEvents(events []OddsEvent) []model.Prediction {
	if len(events) > maxPredictions {
		events = events[:maxPredictions]
	}

	predictions := make([]model.Prediction, 0, len(events))
	for i, event := range events {
		home := event.Price(event.HomeTeam)
		draw := event.Price("Draw")
		away := event.Price(event.AwayTeam)

		kickoff, err := time.Parse(time.RFC3339, event.CommenceTime)
		if err != nil {
			kickoff = time.Time{}
		}

		tier := model.TierFree
		if i >= freeTierCount {
			tier = model.TierPremium
		}

		predictions = append(predictions, model.Prediction{
			ID:             event.ID,
			EventID:        event.ID,
			League:         event.SportTitle,
			Match:          event.HomeTeam + " vs " + event.AwayTeam,
			Kickoff:        kickoff,
			Odds:           model.Odds{Home: home, Draw: draw, Away: away},
			WinProbability: impliedProbability(home, draw, away),
			Confidence:     confidenceFor(impliedProbability(home, draw, away)),
			Tier:           tier,
		})
	}
	return predictions
}

// impliedProbability はホーム勝利のインプライド確率をオーバーラウンド補正付きで返す。
// オッズが欠けている場合は0.55を返す。
func impliedProbability(home, draw, away float64) float64 {
	if home <= 1 {
		return 0.55
	}
	total := 1 / home
	if draw > 1 {
		total += 1 / draw
	}
	if away > 1 {
		total += 1 / away
	}
	p := (1 / home) / total
	return clamp(p, 0.5, 0.9)
}

// confidenceFor は勝率から自信度を導出する。
func confidenceFor(probability float64) float64 {
	return clamp(0.5+probability*0.4, 0.6, 0.95)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mockPredictions は全データソースが利用できない場合の組み込みデータ。
func mockPredictions() []model.Prediction {
	return []model.Prediction{
		{
			ID:             "pre-1",
			League:         "Premier League",
			Match:          "Manchester City vs Arsenal",
			Kickoff:        time.Date(2024, 1, 20, 16, 30, 0, 0, time.UTC),
			Odds:           model.Odds{Home: 1.95, Draw: 3.5, Away: 3.9},
			WinProbability: 0.64,
			Confidence:     0.81,
			Tier:           model.TierFree,
		},
		{
			ID:             "pre-2",
			League:         "Serie A",
			Match:          "Inter Milan vs Napoli",
			Kickoff:        time.Date(2024, 1, 20, 19, 45, 0, 0, time.UTC),
			Odds:           model.Odds{Home: 2.2, Draw: 3.2, Away: 3.4},
			WinProbability: 0.59,
			Confidence:     0.76,
			Tier:           model.TierFree,
		},
		{
			ID:             "pre-3",
			League:         "La Liga",
			Match:          "Barcelona vs Atletico Madrid",
			Kickoff:        time.Date(2024, 1, 21, 20, 0, 0, 0, time.UTC),
			Odds:           model.Odds{Home: 2.05, Draw: 3.4, Away: 3.6},
			WinProbability: 0.61,
			Confidence:     0.83,
			Tier:           model.TierPremium,
		},
		{
			ID:             "pre-4",
			League:         "Bundesliga",
			Match:          "Bayern Munich vs Bayer Leverkusen",
			Kickoff:        time.Date(2024, 1, 21, 18, 30, 0, 0, time.UTC),
			Odds:           model.Odds{Home: 1.8, Draw: 3.8, Away: 4.4},
			WinProbability: 0.68,
			Confidence:     0.88,
			Tier:           model.TierPremium,
		},
	}
}
