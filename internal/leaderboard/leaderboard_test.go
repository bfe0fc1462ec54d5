package leaderboard_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizsync/internal/domain"
	"github.com/victornm/quizsync/internal/leaderboard"
)

func TestRank(t *testing.T) {
	tests := map[string]struct {
		arrange func() []domain.Player
		assert  func(t *testing.T, got []leaderboard.Entry)
	}{
		"should place both top scorers ahead and keep roster order on ties": {
			arrange: func() []domain.Player {
				return []domain.Player{
					{ID: "p1", Nickname: "Ann", Score: 300},
					{ID: "p2", Nickname: "Bob", Score: 900},
					{ID: "p3", Nickname: "Cid", Score: 900},
					{ID: "p4", Nickname: "Dee", Score: 100},
				}
			},
			assert: func(t *testing.T, got []leaderboard.Entry) {
				require.Len(t, got, 4)
				assert.Equal(t, []string{"p2", "p3", "p1", "p4"}, ids(got))
				assert.Equal(t, []int{1, 2, 3, 4}, ranks(got))
			},
		},

		"should reverse tie order when roster order is reversed": {
			arrange: func() []domain.Player {
				return []domain.Player{
					{ID: "p3", Score: 900},
					{ID: "p2", Score: 900},
				}
			},
			assert: func(t *testing.T, got []leaderboard.Entry) {
				assert.Equal(t, []string{"p3", "p2"}, ids(got))
			},
		},

		"should return empty for an empty roster": {
			arrange: func() []domain.Player { return nil },
			assert: func(t *testing.T, got []leaderboard.Entry) {
				assert.Empty(t, got)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			players := tt.arrange()
			before := append([]domain.Player(nil), players...)

			tt.assert(t, leaderboard.Rank(players))
			assert.Equal(t, before, players, "ranking must not reorder the roster")
		})
	}
}

func TestTop(t *testing.T) {
	players := []domain.Player{{ID: "a", Score: 1}, {ID: "b", Score: 3}, {ID: "c", Score: 2}}

	assert.Equal(t, []string{"b", "c"}, ids(leaderboard.Top(players, 2)))
	assert.Len(t, leaderboard.Top(players, 0), 3)
	assert.Len(t, leaderboard.Top(players, 10), 3)
}

func TestExport(t *testing.T) {
	players := []domain.Player{
		{ID: "p1", Nickname: "Ann", Score: 300},
		{ID: "p2", Nickname: "Bob, Jr", Score: 900},
	}

	var buf bytes.Buffer
	require.NoError(t, leaderboard.Export(&buf, players))

	want := "rank,nickname,score\n" +
		"1,\"Bob, Jr\",900\n" +
		"2,Ann,300\n"
	assert.Equal(t, want, buf.String())
}

func ids(entries []leaderboard.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.PlayerID)
	}
	return out
}

func ranks(entries []leaderboard.Entry) []int {
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Rank)
	}
	return out
}
