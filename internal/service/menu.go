package service

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed menu_default.json
var defaultMenu []byte

type MenuItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Dietary     []string `json:"dietary"`
	Allergens   []string `json:"allergens"`
	Available   bool     `json:"available"`
	ChefSpecial bool     `json:"chef_special"`
	Category    string   `json:"category,omitempty"`
}

type MenuCategory struct {
	Key     string     `json:"key"`
	Name    string     `json:"name"`
	Aliases []string   `json:"aliases"`
	Items   []MenuItem `json:"items"`
}

type Menu struct {
	Currency   string         `json:"currency"`
	Categories []MenuCategory `json:"categories"`
}

type MenuSummary struct {
	ItemCount  int      `json:"item_count"`
	Categories []string `json:"categories"`
	MinPrice   float64  `json:"min_price"`
	MaxPrice   float64  `json:"max_price"`
	Currency   string   `json:"currency"`
}

// LoadMenu reads a menu file, or the built-in menu when path is empty.
func LoadMenu(path string) (*Menu, error) {
	raw := defaultMenu
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read menu: %w", err)
		}
		raw = b
	}
	var m Menu
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse menu: %w", err)
	}
	if m.Currency == "" {
		m.Currency = "EUR"
	}
	for ci := range m.Categories {
		for ii := range m.Categories[ci].Items {
			m.Categories[ci].Items[ii].Category = m.Categories[ci].Key
		}
	}
	return &m, nil
}

// Items returns every available dish in menu order.
func (m *Menu) Items() []MenuItem {
	var out []MenuItem
	for _, c := range m.Categories {
		for _, it := range c.Items {
			if it.Available {
				out = append(out, it)
			}
		}
	}
	return out
}

func (m *Menu) Summary() MenuSummary {
	s := MenuSummary{Currency: m.Currency}
	for _, c := range m.Categories {
		s.Categories = append(s.Categories, c.Name)
	}
	for i, it := range m.Items() {
		s.ItemCount++
		if i == 0 || it.Price < s.MinPrice {
			s.MinPrice = it.Price
		}
		if it.Price > s.MaxPrice {
			s.MaxPrice = it.Price
		}
	}
	return s
}

// CategoryIn finds the first category named in text.
func (m *Menu) CategoryIn(text string) (MenuCategory, bool) {
	s := strings.ToLower(text)
	for _, c := range m.Categories {
		if strings.Contains(s, strings.ToLower(c.Name)) || strings.Contains(s, c.Key) {
			return c, true
		}
		for _, a := range c.Aliases {
			if strings.Contains(s, strings.ToLower(a)) {
				return c, true
			}
		}
	}
	return MenuCategory{}, false
}

type Preferences struct {
	Dietary  []string
	MaxPrice float64
}

func (p Preferences) Empty() bool {
	return len(p.Dietary) == 0 && p.MaxPrice == 0
}

var (
	dietaryKeywords = []struct {
		tag   string
		words []string
	}{
		{"vegan", []string{"vegan", "веган"}},
		{"vegetarian", []string{"vegetarian", "veggie", "meatless", "вегетариан", "без мяса"}},
		{"gluten-free", []string{"gluten", "celiac", "глютен"}},
		{"spicy", []string{"spicy", "hot", "остр"}},
	}
	priceCap = regexp.MustCompile(`(?:under|below|less than|up to|до|дешевле)\s*(\d+(?:[.,]\d+)?)`)
)

// ParsePreferences reads dietary wishes and a price cap from an utterance.
func ParsePreferences(text string) Preferences {
	s := strings.ToLower(text)
	var p Preferences
	for _, d := range dietaryKeywords {
		for _, w := range d.words {
			if strings.Contains(s, w) {
				p.Dietary = append(p.Dietary, d.tag)
				break
			}
		}
	}
	if m := priceCap.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
			p.MaxPrice = v
		}
	}
	return p
}

func (m *Menu) Filter(p Preferences) []MenuItem {
	var out []MenuItem
	for _, it := range m.Items() {
		if p.MaxPrice > 0 && it.Price > p.MaxPrice {
			continue
		}
		ok := true
		for _, tag := range p.Dietary {
			if !hasTag(it.Dietary, tag) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, it)
		}
	}
	return out
}

// Recommend prefers chef specials among dishes matching p.
func (m *Menu) Recommend(p Preferences, limit int) []MenuItem {
	items := m.Filter(p)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ChefSpecial != items[j].ChefSpecial {
			return items[i].ChefSpecial
		}
		return false
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func FormatPrice(v float64, currency string) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + " " + currency
}
