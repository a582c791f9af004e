// Package equivalency maps seniority tiers onto the job titles each country uses.
package equivalency

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// NotMapped is shown for a country the table has no title for.
const NotMapped = "Not mapped"

// ResponsibilitiesKey holds the tier description alongside country titles.
const ResponsibilitiesKey = "Responsibilities"

var defaultTiers = []string{
	"Tier 1: Junior (Intern/FY1)",
	"Tier 2: Intermediate (SHO/Resident)",
	"Tier 3: Senior (Registrar/Fellow)",
	"Tier 4: Expert (Consultant/Attending)",
}

var defaultTitles = []map[string]string{
	{"UK": "Foundation Year 1", "Poland": "Lekarz stażysta", ResponsibilitiesKey: "Ward based, supervised prescribing."},
	{"UK": "FY2 / Core Trainee", "Poland": "Lekarz rezydent (Junior)", ResponsibilitiesKey: "Acute assessments, core specialty."},
	{"UK": "ST3+ / Registrar", "Poland": "Lekarz rezydent (Senior)", ResponsibilitiesKey: "Team leadership, specialty decision making."},
	{"UK": "Consultant / SAS", "Poland": "Lekarz specjalista", ResponsibilitiesKey: "Final clinical accountability."},
}

// Country is a selectable country label and the key it uses in the table.
type Country struct {
	Label string `json:"label" yaml:"label"`
	Key   string `json:"key" yaml:"key"`
}

var defaultCountries = []Country{
	{Label: "United Kingdom", Key: "UK"},
	{Label: "Poland", Key: "Poland"},
	{Label: "United States", Key: "US"},
	{Label: "Australia", Key: "Australia"},
}

// Table is a read-only tier by country title lookup.
type Table struct {
	tiers     []string
	titles    []map[string]string
	countries []Country
}

// Row is one country in a comparison.
type Row struct {
	Country string `json:"country"`
	Key     string `json:"key"`
	Title   string `json:"title"`
	Mapped  bool   `json:"mapped"`
}

// Comparison is the equivalency view for one tier.
type Comparison struct {
	Tier             string `json:"tier"`
	Responsibilities string `json:"responsibilities"`
	Rows             []Row  `json:"rows"`
}

// Entry is one tier with every known title, used to print the whole table.
type Entry struct {
	Tier   string            `json:"tier"`
	Titles map[string]string `json:"titles"`
}

// Default returns the built-in table.
func Default() *Table {
	t := &Table{
		tiers:     append([]string(nil), defaultTiers...),
		countries: append([]Country(nil), defaultCountries...),
	}
	for _, m := range defaultTitles {
		t.titles = append(t.titles, copyMap(m))
	}
	return t
}

// Tiers returns the tier labels in order.
func (t *Table) Tiers() []string {
	return append([]string(nil), t.tiers...)
}

// Countries returns the selectable countries in order.
func (t *Table) Countries() []Country {
	return append([]Country(nil), t.countries...)
}

// IsTier reports whether label is exactly one of the tier labels.
func (t *Table) IsTier(label string) bool {
	for _, tier := range t.tiers {
		if tier == label {
			return true
		}
	}
	return false
}

// CountryKey returns the table key for a country label.
func (t *Table) CountryKey(label string) (string, bool) {
	for _, c := range t.countries {
		if strings.EqualFold(c.Label, strings.TrimSpace(label)) {
			return c.Key, true
		}
	}
	return "", false
}

// CountryLabel returns the canonical spelling of a country label.
func (t *Table) CountryLabel(label string) (string, bool) {
	for _, c := range t.countries {
		if strings.EqualFold(c.Label, strings.TrimSpace(label)) {
			return c.Label, true
		}
	}
	return "", false
}

// ResolveTier returns the index of a tier label. It accepts the full label
// or a "Tier N" prefix and falls back to the first tier otherwise.
func (t *Table) ResolveTier(label string) int {
	label = strings.TrimSpace(label)
	for i, tier := range t.tiers {
		if tier == label {
			return i
		}
	}
	for i, tier := range t.tiers {
		short, _, _ := strings.Cut(tier, ":")
		if label != "" && strings.EqualFold(short, label) {
			return i
		}
	}
	return 0
}

// Lookup returns the title for a tier label and country key.
func (t *Table) Lookup(tier, key string) (string, bool) {
	title, ok := t.titles[t.ResolveTier(tier)][key]
	if !ok || key == ResponsibilitiesKey {
		return "", false
	}
	return title, true
}

// Compare builds the equivalency rows for the given country labels.
func (t *Table) Compare(tier string, countries []string) Comparison {
	idx := t.ResolveTier(tier)
	titles := t.titles[idx]

	cmp := Comparison{
		Tier:             t.tiers[idx],
		Responsibilities: titles[ResponsibilitiesKey],
		Rows:             make([]Row, 0, len(countries)),
	}

	for _, label := range countries {
		row := Row{Country: label, Title: NotMapped}
		if key, ok := t.CountryKey(label); ok {
			row.Key = key
			if title, ok := titles[key]; ok {
				row.Title = title
				row.Mapped = true
			}
		}
		cmp.Rows = append(cmp.Rows, row)
	}
	return cmp
}

// Entries returns the whole table in tier order.
func (t *Table) Entries() []Entry {
	entries := make([]Entry, len(t.tiers))
	for i, tier := range t.tiers {
		entries[i] = Entry{Tier: tier, Titles: copyMap(t.titles[i])}
	}
	return entries
}

// Overlay is the YAML shape accepted by LoadOverlay.
//
//	countries:
//	  - label: Germany
//	    key: DE
//	titles:
//	  "Tier 1": {US: "Intern (PGY-1)", DE: "Assistenzarzt"}
type Overlay struct {
	Countries []Country                    `yaml:"countries"`
	Titles    map[string]map[string]string `yaml:"titles"`
}

// LoadOverlay reads an overlay file and applies it to t.
func (t *Table) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read equivalency overlay: %w", err)
	}
	var overlay Overlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse equivalency overlay %s: %w", path, err)
	}
	return t.Apply(overlay)
}

// Apply merges an overlay. It adds countries and fills missing titles but
// never replaces a built-in title.
func (t *Table) Apply(overlay Overlay) error {
	for _, c := range overlay.Countries {
		if c.Label == "" || c.Key == "" {
			return fmt.Errorf("overlay country needs both label and key")
		}
		if _, ok := t.CountryKey(c.Label); ok {
			continue
		}
		t.countries = append(t.countries, c)
	}

	for tier, titles := range overlay.Titles {
		idx, ok := t.exactTier(tier)
		if !ok {
			return fmt.Errorf("overlay references unknown tier %q", tier)
		}
		for key, title := range titles {
			if _, exists := t.titles[idx][key]; exists {
				continue
			}
			t.titles[idx][key] = title
		}
	}
	return nil
}

// exactTier resolves a label without the first-tier fallback.
func (t *Table) exactTier(label string) (int, bool) {
	idx := t.ResolveTier(label)
	if idx == 0 && !t.IsTier(label) {
		short, _, _ := strings.Cut(t.tiers[0], ":")
		if !strings.EqualFold(strings.TrimSpace(label), short) {
			return 0, false
		}
	}
	return idx, true
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
