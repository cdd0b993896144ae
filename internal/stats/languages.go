package stats

import (
	"math"
	"sort"
)

const (
	maxLanguages       = 8
	defaultLanguageHex = "#8b949e"
)

// linguist colors for the languages likely to show up.
var languageColors = map[string]string{
	"TypeScript": "#3178c6",
	"JavaScript": "#f1e05a",
	"Python":     "#3572A5",
	"Java":       "#b07219",
	"Go":         "#00ADD8",
	"Rust":       "#dea584",
	"C++":        "#f34b7d",
	"C":          "#555555",
	"C#":         "#178600",
	"Ruby":       "#701516",
	"PHP":        "#4F5D95",
	"Swift":      "#F05138",
	"Kotlin":     "#A97BFF",
	"HTML":       "#e34c26",
	"CSS":        "#563d7c",
	"SCSS":       "#c6538c",
	"Vue":        "#41b883",
	"Svelte":     "#ff3e00",
	"Shell":      "#89e051",
	"Dockerfile": "#384d54",
	"Lua":        "#000080",
	"Dart":       "#00B4AB",
	"Elixir":     "#6e4a7e",
	"Haskell":    "#5e5086",
	"Scala":      "#c22d40",
	"R":          "#198CE7",
	"Julia":      "#a270ba",
	"Zig":        "#ec915c",
	"Nix":        "#7e7eff",
	"Astro":      "#ff5a03",
	"MDX":        "#083fa1",
}

func LanguageColor(name string) string {
	if c, ok := languageColors[name]; ok {
		return c
	}
	return defaultLanguageHex
}

// Breakdown ranks languages by bytes (ties by name) and keeps the top 8.
// Percentages are of the total across all languages, rounded to one decimal.
func Breakdown(bytes map[string]int64) []Language {
	var total int64
	for _, b := range bytes {
		total += b
	}

	out := make([]Language, 0, len(bytes))
	for name, b := range bytes {
		pct := 0.0
		if total > 0 {
			pct = math.Round(float64(b)/float64(total)*1000) / 10
		}
		out = append(out, Language{Name: name, Bytes: b, Percentage: pct, Color: LanguageColor(name)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bytes != out[j].Bytes {
			return out[i].Bytes > out[j].Bytes
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > maxLanguages {
		out = out[:maxLanguages]
	}
	return out
}
