// Package news はスポーツニュース見出しの取得を提供する。
// 運用者が設定したRSS/AtomフィードURLをSSRF防止付きクライアントでフェッチし、
// 見出しをサニタイズして新しい順に返す。
package news

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/kentaro/oddsboard/internal/model"
	"github.com/kentaro/oddsboard/internal/security"
)

const (
	// fetchTimeout は1フィードあたりのフェッチタイムアウト。
	fetchTimeout = 10 * time.Second
	// maxHeadlines は1レスポンスあたりの最大見出し数。
	maxHeadlines = 20
)

// Sanitizer は見出しテキストのサニタイズに必要なインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Service はニュース見出しの取得ロジックを提供する。
type Service struct {
	feedURLs  []string
	guard     security.SSRFGuardService
	sanitizer Sanitizer
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(feedURLs []string, guard security.SSRFGuardService, sanitizer Sanitizer, logger *slog.Logger) *Service {
	return &Service{
		feedURLs:  feedURLs,
		guard:     guard,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// Headlines は設定された全フィードから見出しを収集し、公開日時の新しい順に返す。
// フィード単位の失敗はログに記録してスキップする（1本の不調で全体を落とさない）。
func (s *Service) Headlines(ctx context.Context) []model.NewsItem {
	parser := gofeed.NewParser()
	parser.Client = s.guard.NewSafeClient(fetchTimeout)

	var items []newsEntry
	for _, feedURL := range s.feedURLs {
		if err := s.guard.ValidateURL(feedURL); err != nil {
			s.logger.Warn("news feed URL rejected",
				slog.String("url", feedURL),
				slog.String("error", err.Error()),
			)
			continue
		}

		feed, err := parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			s.logger.Warn("news feed fetch failed",
				slog.String("url", feedURL),
				slog.String("error", err.Error()),
			)
			continue
		}

		source := s.sanitizer.Sanitize(feed.Title)
		for _, item := range feed.Items {
			title := s.sanitizer.Sanitize(item.Title)
			if title == "" {
				continue
			}
			entry := newsEntry{
				item: model.NewsItem{
					Title:  title,
					Link:   item.Link,
					Source: source,
				},
			}
			if item.PublishedParsed != nil {
				entry.published = *item.PublishedParsed
				entry.item.PublishedAt = item.PublishedParsed.Format(time.RFC3339)
			}
			items = append(items, entry)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].published.After(items[j].published)
	})

	if len(items) > maxHeadlines {
		items = items[:maxHeadlines]
	}

	headlines := make([]model.NewsItem, len(items))
	for i, entry := range items {
		headlines[i] = entry.item
	}
	return headlines
}

// newsEntry はソート用に公開日時を保持する内部表現。
type newsEntry struct {
	item      model.NewsItem
	published time.Time
}
