// Package leaderboard derives rankings from a session roster.
package leaderboard

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/victornm/quizsync/internal/domain"
)

type Entry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Score    int    `json:"score"`
}

// Rank orders players by score, highest first. Players with equal scores keep
// their roster order, which is join order. Ranks are positions starting at 1.
func Rank(players []domain.Player) []Entry {
	sorted := slices.Clone(players)
	slices.SortStableFunc(sorted, func(a, b domain.Player) int {
		return b.Score - a.Score
	})

	entries := make([]Entry, 0, len(sorted))
	for i, p := range sorted {
		entries = append(entries, Entry{
			Rank:     i + 1,
			PlayerID: p.ID,
			Nickname: p.Nickname,
			Avatar:   p.Avatar,
			Score:    p.Score,
		})
	}

	return entries
}

// Top returns at most n leading entries. A non-positive n returns all of them.
func Top(players []domain.Player, n int) []Entry {
	entries := Rank(players)
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}

	return entries
}

// Export writes the final standings as CSV with a rank,nickname,score header.
func Export(w io.Writer, players []domain.Player) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"rank", "nickname", "score"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range Rank(players) {
		if err := cw.Write([]string{strconv.Itoa(e.Rank), e.Nickname, strconv.Itoa(e.Score)}); err != nil {
			return fmt.Errorf("write row %d: %w", e.Rank, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
