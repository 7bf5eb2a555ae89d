package bot

import (
	"sort"

	"thirteen/internal/domain"
)

// ChoosePlay picks the cheapest legal play for the position: the candidate
// whose strongest card is lowest. With power it always leads the lowest
// single to keep the hand flexible. A nil result means pass.
func ChoosePlay(g *domain.Game, pos int) []domain.Card {
	eval := Evaluate(g, pos)

	if g.LastPlay == nil && len(eval.Singles) > 0 {
		return eval.Singles[0]
	}

	all := eval.All()
	if len(all) == 0 {
		return nil
	}

	sort.SliceStable(all, func(i, j int) bool {
		return maxValue(all[i]) < maxValue(all[j])
	})
	return all[0]
}
