package stats

import (
	"errors"
	"time"
)

// ErrNotConfigured is returned by a client whose credential is empty.
var ErrNotConfigured = errors.New("stats: provider credential not configured")

const (
	ProviderGitHub   = "github"
	ProviderWakaTime = "wakatime"
)

// Cache keys. Bump the github suffix when GitHubStats changes shape.
const (
	GitHubCacheKey   = "github-stats-v1"
	WakaTimeCacheKey = "wakatime-stats"
)

type Language struct {
	Name       string  `json:"name"`
	Bytes      int64   `json:"bytes,omitempty"`
	Percentage float64 `json:"percentage"`
	Color      string  `json:"color"`
}

type GitHubStats struct {
	TotalContributions int        `json:"totalContributions"`
	TotalCommits       int        `json:"totalCommits"`
	TotalPRs           int        `json:"totalPRs"`
	TotalIssues        int        `json:"totalIssues"`
	TotalRepos         int        `json:"totalRepos"`
	TotalStars         int        `json:"totalStars"`
	Followers          int        `json:"followers"`
	CurrentStreak      int        `json:"currentStreak"`
	Year               int        `json:"year"`
	TopLanguages       []string   `json:"topLanguages"`
	LanguageBreakdown  []Language `json:"languageBreakdown"`
	IsLoading          bool       `json:"isLoading"`
	Error              *string    `json:"error"`
}

type WakaTimeStats struct {
	TotalSeconds       float64 `json:"totalSeconds"`
	TotalHuman         string  `json:"totalHuman"`
	DailyAverage       string  `json:"dailyAverage"`
	TopLanguage        string  `json:"topLanguage"`
	TopLanguagePercent float64 `json:"topLanguagePercent"`
	IsLoading          bool    `json:"isLoading"`
	Error              *string `json:"error"`
}

// Fallback error strings.
const (
	GitHubNoTokenMsg    = "Token not configured - showing fallback data"
	GitHubFailedMsg     = "Failed to fetch GitHub stats"
	WakaTimeNoKeyMsg    = "WakaTime API key not configured"
	WakaTimeFailedMsg   = "Failed to fetch WakaTime stats"
	defaultWakaLanguage = "TypeScript"
	defaultWakaHuman    = "0 hrs"
)

// GitHubFallback is served when live stats are unavailable.
func GitHubFallback(now time.Time, msg string) GitHubStats {
	return GitHubStats{
		TotalContributions: 699,
		TotalCommits:       650,
		TotalPRs:           30,
		TotalIssues:        19,
		TotalRepos:         30,
		TotalStars:         15,
		Followers:          50,
		CurrentStreak:      7,
		Year:               now.Year(),
		TopLanguages:       []string{"TypeScript", "JavaScript", "Python"},
		LanguageBreakdown: []Language{
			{Name: "TypeScript", Percentage: 45, Color: "#3178c6"},
			{Name: "JavaScript", Percentage: 25, Color: "#f1e05a"},
			{Name: "Python", Percentage: 15, Color: "#3572A5"},
			{Name: "CSS", Percentage: 10, Color: "#563d7c"},
			{Name: "HTML", Percentage: 5, Color: "#e34c26"},
		},
		Error: strPtr(msg),
	}
}

// WakaTimeFallback is served when live stats are unavailable.
func WakaTimeFallback(msg string) WakaTimeStats {
	return WakaTimeStats{
		TotalHuman:         "20+ hrs",
		DailyAverage:       "3+ hrs",
		TopLanguage:        "TypeScript",
		TopLanguagePercent: 82,
		Error:              strPtr(msg),
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
