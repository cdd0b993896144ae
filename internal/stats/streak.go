package stats

import "time"

type ContributionDay struct {
	ContributionCount int    `json:"contributionCount"`
	Date              string `json:"date"`
}

// CurrentStreak counts consecutive days with contributions ending today.
// A quiet today does not break the streak: counting then starts at
// yesterday. Days after now are ignored, as are unparseable dates.
func CurrentStreak(days []ContributionDay, now time.Time) int {
	past := make([]ContributionDay, 0, len(days))
	for _, d := range days {
		t, err := time.Parse(time.DateOnly, d.Date)
		if err != nil || t.After(now) {
			continue
		}
		past = append(past, d)
	}
	if len(past) == 0 {
		return 0
	}

	// newest first
	i := len(past) - 1
	if past[i].ContributionCount == 0 {
		i--
	}
	streak := 0
	for ; i >= 0 && past[i].ContributionCount > 0; i-- {
		streak++
	}
	return streak
}
