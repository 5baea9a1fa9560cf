package service

import (
	"os"
	"path/filepath"
	"testing"
)

func loadDefaultMenu(t *testing.T) *Menu {
	t.Helper()
	m, err := LoadMenu("")
	if err != nil {
		t.Fatalf("load menu: %v", err)
	}
	return m
}

func TestMenuSummary(t *testing.T) {
	s := loadDefaultMenu(t).Summary()
	if s.ItemCount != 12 || s.Currency != "EUR" || len(s.Categories) != 4 {
		t.Fatalf("summary = %+v", s)
	}
	if s.MinPrice != 2.9 || s.MaxPrice != 18.9 {
		t.Fatalf("price range = %v..%v", s.MinPrice, s.MaxPrice)
	}
}

func TestMenuItemsSkipUnavailable(t *testing.T) {
	for _, it := range loadDefaultMenu(t).Items() {
		if it.ID == "mn-5" {
			t.Fatalf("unavailable dish listed")
		}
		if it.Category == "" {
			t.Fatalf("item %s has no category", it.ID)
		}
	}
}

func TestMenuCategoryIn(t *testing.T) {
	m := loadDefaultMenu(t)
	cases := map[string]string{
		"what do you have for dessert":  "desserts",
		"any main courses without meat": "mains",
		"a glass of kofola":             "",
	}
	for text, want := range cases {
		c, ok := m.CategoryIn(text)
		if want == "" {
			if ok {
				t.Errorf("CategoryIn(%q) matched %q", text, c.Key)
			}
			continue
		}
		if !ok || c.Key != want {
			t.Errorf("CategoryIn(%q) = %q, want %q", text, c.Key, want)
		}
	}
}

func TestParsePreferences(t *testing.T) {
	p := ParsePreferences("Something vegan under 8 euros")
	if len(p.Dietary) != 1 || p.Dietary[0] != "vegan" || p.MaxPrice != 8 {
		t.Fatalf("preferences = %+v", p)
	}
	if p := ParsePreferences("just tell me about the menu"); !p.Empty() {
		t.Fatalf("expected no preferences, got %+v", p)
	}
	if p := ParsePreferences("gluten free and less than 12,50"); p.MaxPrice != 12.5 || p.Dietary[0] != "gluten-free" {
		t.Fatalf("preferences = %+v", p)
	}
}

func TestMenuFilterAndRecommend(t *testing.T) {
	m := loadDefaultMenu(t)
	got := m.Filter(ParsePreferences("vegan under 8"))
	want := []string{"ds-2", "dr-1", "dr-2"}
	if len(got) != len(want) {
		t.Fatalf("filter = %+v", got)
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("filter[%d] = %s, want %s", i, got[i].ID, want[i])
		}
	}

	rec := m.Recommend(Preferences{}, 3)
	for i, id := range []string{"st-2", "mn-1", "mn-2"} {
		if rec[i].ID != id {
			t.Fatalf("recommend[%d] = %s, want %s", i, rec[i].ID, id)
		}
	}
	if veg := m.Recommend(Preferences{Dietary: []string{"vegetarian"}}, 0); veg[0].ID != "ds-1" || len(veg) != 7 {
		t.Fatalf("vegetarian recommendations = %+v", veg)
	}
}

func TestFormatPrice(t *testing.T) {
	if got := FormatPrice(6.5, "EUR"); got != "6.50 EUR" {
		t.Fatalf("FormatPrice = %q", got)
	}
}

func TestLoadMenuFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.json")
	body := `{"categories":[{"key":"soups","name":"Soups","items":[{"id":"s1","name":"Kapustnica","price":5,"available":true}]}]}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write menu: %v", err)
	}
	m, err := LoadMenu(path)
	if err != nil {
		t.Fatalf("load menu: %v", err)
	}
	if m.Currency != "EUR" || m.Items()[0].Category != "soups" {
		t.Fatalf("menu = %+v", m)
	}
	if _, err := LoadMenu(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
