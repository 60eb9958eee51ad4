package scoring

import (
	"sort"
	"strings"
)

// Rank orders stage results by grand total descending and assigns positions
// 1..N. Equal totals are broken by player name ascending, case-insensitive,
// so repeated runs over the same results always produce the same order.
// Bowlers with zero games are excluded: they have no line on the board.
func Rank(results []StageResult) []StageResult {
	ranked := make([]StageResult, 0, len(results))
	for _, r := range results {
		if r.GamesPlayed == 0 {
			continue
		}
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].GrandTotal != ranked[j].GrandTotal {
			return ranked[i].GrandTotal > ranked[j].GrandTotal
		}
		return strings.ToLower(ranked[i].PlayerName) < strings.ToLower(ranked[j].PlayerName)
	})

	for i := range ranked {
		ranked[i].Position = i + 1
	}
	return ranked
}
