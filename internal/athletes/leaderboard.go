package athletes

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Leaderboard message rendering for the weekly/yearly group summary. The
// texts are shared with the chat delivery the group uses, so wording and
// emoji tiers are part of the contract.

func mileageEmoji(miles float64) string {
	switch {
	case miles >= 40:
		return "🔥"
	case miles >= 30:
		return "💪"
	case miles >= 20:
		return "⚡"
	case miles >= 10:
		return "👍"
	default:
		return "👏"
	}
}

type leaderboardEntry struct {
	name  string
	miles float64
	runs  int
}

// YearlyStatsMessage builds the yearly running summary: podium when three or
// more athletes logged miles, plain list otherwise, group totals at the end.
func YearlyStatsMessage(stats []Stats, now time.Time) string {
	var runners []leaderboardEntry
	for _, s := range stats {
		if s.TotalDistanceMiles <= 0 {
			continue
		}
		runners = append(runners, leaderboardEntry{
			name:  s.Name,
			miles: s.TotalDistanceMiles,
			runs:  s.RunCount,
		})
	}

	if len(runners) == 0 {
		return "🏃‍♂️💨 YEARLY RUNNING SUMMARY 💨🏃‍♀️\n\n📢 No data available!\n\nGet those miles in! 🎯"
	}

	sort.Slice(runners, func(i, j int) bool {
		return runners[i].miles > runners[j].miles
	})

	var totalMiles float64
	var totalRuns int
	for _, r := range runners {
		totalMiles += r.miles
		totalRuns += r.runs
	}

	year := now.Year()
	parts := []string{fmt.Sprintf("🏃‍♂️💨 %d YEARLY RUNNING SUMMARY 💨🏃‍♀️\n", year)}

	if len(runners) >= 3 {
		parts = append(parts, "🏆 TOP MILEAGE LEADERS 🏆")
		medals := []string{"🥇", "🥈", "🥉"}
		for i := 0; i < 3; i++ {
			parts = append(parts, fmt.Sprintf("%s %s: %.2f mi (%d runs)", medals[i], runners[i].name, runners[i].miles, runners[i].runs))
		}
		if len(runners) > 3 {
			parts = append(parts, "\n🏃 OTHER RUNNERS 🏃")
			for _, r := range runners[3:] {
				parts = append(parts, fmt.Sprintf("• %s: %.2f mi (%d runs)", r.name, r.miles, r.runs))
			}
		}
	} else {
		parts = append(parts, "🏃 YEARLY STATS 🏃")
		for i, r := range runners {
			parts = append(parts, fmt.Sprintf("%d. %s: %.2f mi (%d runs)", i+1, r.name, r.miles, r.runs))
		}
	}

	parts = append(parts,
		"\n📊 GROUP TOTALS 📊",
		fmt.Sprintf("Total miles: %.2f mi 🎯", totalMiles),
		fmt.Sprintf("Total runs: %d runs 👟", totalRuns),
		"\nKeep crushing those goals! 💪✨",
		fmt.Sprintf("\n#RunningCrew #%dYearInReview", year),
	)

	return strings.Join(parts, "\n")
}

// WeeklyLeaderboardMessage builds the current-week leaderboard from the
// latest weekly volume of each athlete.
func WeeklyLeaderboardMessage(stats []Stats) string {
	var runners []leaderboardEntry
	for _, s := range stats {
		if miles := s.CurrentWeekMiles(); miles > 0 {
			runners = append(runners, leaderboardEntry{name: s.Name, miles: miles})
		}
	}

	if len(runners) == 0 {
		return "🏃‍♂️💨 WEEKLY RUNNING LEADERBOARD 💨🏃‍♀️\n\n📢 No miles logged this week!\nTime to lace up those shoes! 👟\n\nGet out there and run! 🎯"
	}

	sort.Slice(runners, func(i, j int) bool {
		return runners[i].miles > runners[j].miles
	})

	var totalMiles float64
	for _, r := range runners {
		totalMiles += r.miles
	}

	parts := []string{"🏃‍♂️💨 WEEKLY RUNNING LEADERBOARD 💨🏃‍♀️\n"}

	if len(runners) >= 3 {
		parts = append(parts,
			"🏆 PODIUM FINISHERS 🏆",
			fmt.Sprintf("🥇 %s: %.2f mi - Beast Mode! %s", runners[0].name, runners[0].miles, mileageEmoji(runners[0].miles)),
			fmt.Sprintf("🥈 %s: %.2f mi - Crushing it! %s", runners[1].name, runners[1].miles, mileageEmoji(runners[1].miles)),
			fmt.Sprintf("🥉 %s: %.2f mi - On fire! %s", runners[2].name, runners[2].miles, mileageEmoji(runners[2].miles)),
		)
		if len(runners) > 3 {
			parts = append(parts, "\n🏃 ALSO PUTTING IN WORK 🏃")
			for _, r := range runners[3:] {
				parts = append(parts, fmt.Sprintf("• %s: %.2f mi", r.name, r.miles))
			}
		}
	} else {
		parts = append(parts, "🏃 THIS WEEK'S RUNNERS 🏃")
		for i, r := range runners {
			parts = append(parts, fmt.Sprintf("%d. %s: %.2f mi %s", i+1, r.name, r.miles, mileageEmoji(r.miles)))
		}
	}

	parts = append(parts,
		fmt.Sprintf("\nTotal group miles: %.2f mi 🎯", totalMiles),
		"Keep those legs moving! 🦵✨",
	)

	return strings.Join(parts, "\n")
}
