package view

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/policyfeed/internal/model"
)

func ids(items []model.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func fixtureItems() []model.Item {
	return []model.Item{
		{ID: "1", Title: "Bravo forest", PubDate: "2024-03-01", SourceURL: "https://a.example", Categories: []string{"Forests"}},
		{ID: "2", Title: "Alpha biomass", Description: "Pellet mills", PubDate: "2024-03-03", SourceURL: "https://b.example", Categories: []string{"Energy"}},
		{ID: "3", Title: "Charlie", PubDate: "invalid", SourceURL: "https://a.example", Categories: []string{}},
		{ID: "4", Title: "Delta timber", PubDate: "2024-03-02", SourceURL: "https://c.example", Categories: []string{"Forests", "Energy"}},
	}
}

func TestDerive_Tabs(t *testing.T) {
	saved := []model.Item{{ID: "s1", SourceURL: "https://a.example", PubDate: "2024-01-01"}}
	team := []model.Item{{ID: "t1", SourceURL: "https://a.example", PubDate: "2024-01-01"}}
	hidden := HiddenSet([]string{"https://a.example"})

	tests := []struct {
		name string
		tab  string
		want []string
	}{
		{"既定はAll", "", []string{"2", "4"}},
		{"All", TabAll, []string{"2", "4"}},
		{"カテゴリ", "Forests", []string{"4"}},
		{"Savedは非表示を無視", TabSaved, []string{"s1"}},
		{"Teamは非表示を無視", TabTeam, []string{"t1"}},
		{"未知のカテゴリ", "Nope", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(Input{Items: fixtureItems(), Saved: saved, Team: team, Hidden: hidden, Tab: tt.tab})
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestDerive_Search(t *testing.T) {
	got := Derive(Input{Items: fixtureItems(), Search: "  PELLET "})
	if diff := cmp.Diff([]string{"2"}, ids(got)); diff != "" {
		t.Errorf("説明文も大文字小文字を区別せず検索すべきです (-want +got):\n%s", diff)
	}
}

func TestDerive_Sort(t *testing.T) {
	tests := []struct {
		name   string
		sortBy string
		order  string
		want   []string
	}{
		{"日付降順（既定）", "", "", []string{"2", "4", "1", "3"}},
		{"日付昇順", SortByDate, OrderAsc, []string{"3", "1", "4", "2"}},
		{"タイトル昇順", SortByTitle, OrderAsc, []string{"2", "1", "3", "4"}},
		{"タイトル降順", SortByTitle, OrderDesc, []string{"4", "3", "1", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(Input{Items: fixtureItems(), SortBy: tt.sortBy, Order: tt.order})
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestDerive_DoesNotMutateInput(t *testing.T) {
	items := fixtureItems()
	_ = Derive(Input{Items: items, SortBy: SortByTitle, Order: OrderAsc})
	if diff := cmp.Diff([]string{"1", "2", "3", "4"}, ids(items)); diff != "" {
		t.Errorf("入力の順序が変更されました:\n%s", diff)
	}
}

func TestCurrentCategory(t *testing.T) {
	for _, tab := range []string{"", TabAll, TabSaved, TabTeam} {
		if got := CurrentCategory(tab); got != "" {
			t.Errorf("CurrentCategory(%q) = %q, want 空文字列", tab, got)
		}
	}
	if got := CurrentCategory("Forests"); got != "Forests" {
		t.Errorf("CurrentCategory(Forests) = %q", got)
	}
}

func TestToggleOrder(t *testing.T) {
	if ToggleOrder(OrderAsc) != OrderDesc || ToggleOrder(OrderDesc) != OrderAsc || ToggleOrder("") != OrderAsc {
		t.Error("ToggleOrder の結果が不正です")
	}
}
