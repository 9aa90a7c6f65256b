// Package view は保存済みストリームから表示用の一覧（タブ、非表示ソース、検索、並び替え）を導出する。
package view

import (
	"sort"
	"strings"

	"github.com/hitoshi/policyfeed/internal/model"
)

// 固定タブ。これ以外のタブ名はカテゴリ名として扱う。
const (
	TabAll   = "All"
	TabSaved = "Saved"
	TabTeam  = "Team"
)

// 並び替えキーと順序。
const (
	SortByDate  = "date"
	SortByTitle = "title"
	OrderAsc    = "asc"
	OrderDesc   = "desc"
)

// Input は一覧の導出に必要な入力。
type Input struct {
	Items  []model.Item
	Saved  []model.Item
	Team   []model.Item
	Hidden map[string]bool // 非表示にするsourceUrlの集合
	Tab    string
	Search string
	SortBy string
	Order  string
}

// Derive はタブで母集合を選び、非表示ソースの除外、検索、並び替えを順に適用した新しいスライスを返す。
// 非表示ソースの除外はAllとカテゴリタブにだけ適用する。
func Derive(in Input) []model.Item {
	tab := in.Tab
	if tab == "" {
		tab = TabAll
	}

	var base []model.Item
	applyHidden := true
	switch tab {
	case TabAll:
		base = in.Items
	case TabSaved:
		base = in.Saved
		applyHidden = false
	case TabTeam:
		base = in.Team
		applyHidden = false
	default:
		for _, item := range in.Items {
			if item.HasCategory(tab) {
				base = append(base, item)
			}
		}
	}

	query := strings.ToLower(strings.TrimSpace(in.Search))
	out := make([]model.Item, 0, len(base))
	for _, item := range base {
		if applyHidden && in.Hidden[item.SourceURL] {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(item.Title+" "+item.Description), query) {
			continue
		}
		out = append(out, item)
	}

	sortItems(out, in.SortBy, in.Order)
	return out
}

func sortItems(items []model.Item, sortBy, order string) {
	asc := order == OrderAsc

	var less func(i, j int) bool
	if sortBy == SortByTitle {
		less = func(i, j int) bool {
			if asc {
				return items[i].Title < items[j].Title
			}
			return items[i].Title > items[j].Title
		}
	} else {
		less = func(i, j int) bool {
			ti, tj := items[i].PublishedTime(), items[j].PublishedTime()
			if asc {
				return ti.Before(tj)
			}
			return ti.After(tj)
		}
	}
	sort.SliceStable(items, less)
}

// CurrentCategory は選択中のタブがカテゴリの場合にその名前を返す。固定タブでは空文字列。
func CurrentCategory(tab string) string {
	switch tab {
	case "", TabAll, TabSaved, TabTeam:
		return ""
	default:
		return tab
	}
}

// ToggleOrder は昇順と降順を入れ替える。
func ToggleOrder(order string) string {
	if order == OrderAsc {
		return OrderDesc
	}
	return OrderAsc
}

// HiddenSet は非表示ソースURLの一覧を集合に変換する。
func HiddenSet(urls []string) map[string]bool {
	set := make(map[string]bool, len(urls))
	for _, u := range urls {
		set[u] = true
	}
	return set
}
