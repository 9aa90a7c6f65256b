package model

import "time"

// Preferences はユーザーごとの購読フィード、カテゴリ、非表示ソースを保持する。
// 変更は以下のメソッドで新しいスライスを生成して行い、既存のスライスは書き換えない。
type Preferences struct {
	UserID      string
	Feeds       []FeedSubscription
	Categories  []Category
	HiddenFeeds []string
	UpdatedAt   time.Time
}

// FindFeed はURLが一致する購読を返す。
func (p *Preferences) FindFeed(url string) (FeedSubscription, bool) {
	for _, f := range p.Feeds {
		if f.URL == url {
			return f, true
		}
	}
	return FeedSubscription{}, false
}

// WithFeed は購読を末尾に追加した新しいフィード一覧を返す。
func (p *Preferences) WithFeed(feed FeedSubscription) []FeedSubscription {
	feeds := make([]FeedSubscription, 0, len(p.Feeds)+1)
	feeds = append(feeds, p.Feeds...)
	return append(feeds, feed)
}

// WithoutFeed はURLが一致する購読を除いた新しいフィード一覧を返す。
func (p *Preferences) WithoutFeed(url string) []FeedSubscription {
	feeds := make([]FeedSubscription, 0, len(p.Feeds))
	for _, f := range p.Feeds {
		if f.URL != url {
			feeds = append(feeds, f)
		}
	}
	return feeds
}

// ReplacingFeed はURLが一致する購読を置き換えた新しいフィード一覧を返す。
func (p *Preferences) ReplacingFeed(feed FeedSubscription) []FeedSubscription {
	feeds := make([]FeedSubscription, len(p.Feeds))
	for i, f := range p.Feeds {
		if f.URL == feed.URL {
			f = feed
		}
		feeds[i] = f
	}
	return feeds
}

// FindCategory は名前が一致するカテゴリを返す。
func (p *Preferences) FindCategory(name string) (Category, bool) {
	for _, c := range p.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// WithCategory はカテゴリを末尾に追加した新しいカテゴリ一覧を返す。
func (p *Preferences) WithCategory(cat Category) []Category {
	cats := make([]Category, 0, len(p.Categories)+1)
	cats = append(cats, p.Categories...)
	return append(cats, cat)
}

// WithoutCategory は名前が一致するカテゴリを除いた新しいカテゴリ一覧を返す。
func (p *Preferences) WithoutCategory(name string) []Category {
	cats := make([]Category, 0, len(p.Categories))
	for _, c := range p.Categories {
		if c.Name != name {
			cats = append(cats, c)
		}
	}
	return cats
}

// ReplacingCategory は名前がorigのカテゴリをcatに置き換えた新しいカテゴリ一覧を返す。
func (p *Preferences) ReplacingCategory(orig string, cat Category) []Category {
	cats := make([]Category, len(p.Categories))
	for i, c := range p.Categories {
		if c.Name == orig {
			c = cat
		}
		cats[i] = c
	}
	return cats
}

// IsHidden はソースURLが非表示に設定されているかを返す。
func (p *Preferences) IsHidden(url string) bool {
	for _, h := range p.HiddenFeeds {
		if h == url {
			return true
		}
	}
	return false
}

// TogglingHidden は非表示状態を反転した新しい非表示ソース一覧を返す。
func (p *Preferences) TogglingHidden(url string) []string {
	hidden := make([]string, 0, len(p.HiddenFeeds)+1)
	found := false
	for _, h := range p.HiddenFeeds {
		if h == url {
			found = true
			continue
		}
		hidden = append(hidden, h)
	}
	if !found {
		hidden = append(hidden, url)
	}
	return hidden
}
