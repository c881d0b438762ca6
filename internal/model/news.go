package model

// NewsItem はスポーツニュースの見出し1件を表す。
type NewsItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Source      string `json:"source"`
	PublishedAt string `json:"publishedAt,omitempty"`
}
