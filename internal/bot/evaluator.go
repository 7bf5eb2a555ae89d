package bot

import (
	"sort"

	"thirteen/internal/domain"
)

// Evaluate enumerates the legal plays available to the given position.
// Every candidate is validated through the game's CanPlay, which also
// prunes everything that cannot answer the last play.
func Evaluate(g *domain.Game, pos int) Evaluation {
	hand := make([]domain.Card, len(g.Hands[pos]))
	copy(hand, g.Hands[pos])
	domain.SortHand(hand)

	byRank := make(map[int32][]domain.Card)
	for _, c := range hand {
		byRank[c.Rank] = append(byRank[c.Rank], c)
	}

	return Evaluation{
		Singles: findSingles(g, pos, hand),
		Pairs:   findOfAKind(g, pos, byRank, 2),
		Triples: findOfAKind(g, pos, byRank, 3),
		Quads:   findQuads(g, pos, byRank),
		Runs:    findRuns(g, pos, hand),
		Bombs:   findBombs(g, pos, byRank),
	}
}

func tryPlay(g *domain.Game, pos int, cards []domain.Card) bool {
	return g.CanPlay(pos, cards) == nil
}

func findSingles(g *domain.Game, pos int, hand []domain.Card) [][]domain.Card {
	var valid [][]domain.Card
	for _, c := range hand {
		if tryPlay(g, pos, []domain.Card{c}) {
			valid = append(valid, []domain.Card{c})
		}
	}
	return valid
}

// findOfAKind emits every size-n subset of each rank bucket.
func findOfAKind(g *domain.Game, pos int, byRank map[int32][]domain.Card, n int) [][]domain.Card {
	var valid [][]domain.Card
	for _, bucket := range byRank {
		if len(bucket) < n {
			continue
		}
		for _, cards := range subsets(bucket, n) {
			if tryPlay(g, pos, cards) {
				valid = append(valid, cards)
			}
		}
	}
	sortPlays(valid)
	return valid
}

func findQuads(g *domain.Game, pos int, byRank map[int32][]domain.Card) [][]domain.Card {
	var valid [][]domain.Card
	for _, bucket := range byRank {
		if len(bucket) != 4 {
			continue
		}
		cards := append([]domain.Card(nil), bucket...)
		if tryPlay(g, pos, cards) {
			valid = append(valid, cards)
		}
	}
	sortPlays(valid)
	return valid
}

// findRuns walks every consecutive-rank subsequence of the hand, taking
// one representative card per rank. When the last play is a run the
// length is fixed to the required one.
func findRuns(g *domain.Game, pos int, hand []domain.Card) [][]domain.Card {
	var eligible []domain.Card
	for _, c := range hand {
		if c.Rank != domain.RankTwo {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) < 3 {
		return nil
	}

	minLen, maxLen := 3, len(eligible)
	if g.LastPlay != nil && g.LastPlay.Combo == domain.ComboRun {
		minLen = len(g.LastPlay.Cards)
		maxLen = minLen
	}

	var valid [][]domain.Card
	for length := minLen; length <= maxLen; length++ {
		for start := range eligible {
			var run []domain.Card
		walk:
			for i := start; i < len(eligible); i++ {
				c := eligible[i]
				switch {
				case len(run) == 0 || c.Rank == run[len(run)-1].Rank+1:
					run = append(run, c)
				case c.Rank == run[len(run)-1].Rank:
					continue // one card per rank
				default:
					break walk
				}
				if len(run) == length {
					cards := append([]domain.Card(nil), run...)
					if tryPlay(g, pos, cards) {
						valid = append(valid, cards)
					}
					break
				}
			}
		}
	}
	return valid
}

// findBombs emits consecutive-pair bombs using the two lowest cards of
// each rank. When the last play is a bomb the pair count is fixed.
func findBombs(g *domain.Game, pos int, byRank map[int32][]domain.Card) [][]domain.Card {
	var pairRanks []int32
	for rank, bucket := range byRank {
		if rank != domain.RankTwo && len(bucket) >= 2 {
			pairRanks = append(pairRanks, rank)
		}
	}
	if len(pairRanks) < 3 {
		return nil
	}
	sort.Slice(pairRanks, func(i, j int) bool { return pairRanks[i] < pairRanks[j] })

	minPairs, maxPairs := 3, len(pairRanks)
	if g.LastPlay != nil && g.LastPlay.Combo == domain.ComboBomb {
		minPairs = len(g.LastPlay.Cards) / 2
		maxPairs = minPairs
	}

	var valid [][]domain.Card
	for pairs := minPairs; pairs <= maxPairs; pairs++ {
		for start := 0; start+pairs <= len(pairRanks); start++ {
			consecutive := true
			for i := 0; i < pairs-1; i++ {
				if pairRanks[start+i]+1 != pairRanks[start+i+1] {
					consecutive = false
					break
				}
			}
			if !consecutive {
				continue
			}

			cards := make([]domain.Card, 0, pairs*2)
			for i := 0; i < pairs; i++ {
				bucket := byRank[pairRanks[start+i]]
				cards = append(cards, bucket[0], bucket[1])
			}
			if tryPlay(g, pos, cards) {
				valid = append(valid, cards)
			}
		}
	}
	return valid
}

// subsets returns every size-n subset of a rank bucket (at most 4 cards).
func subsets(bucket []domain.Card, n int) [][]domain.Card {
	var out [][]domain.Card
	switch n {
	case 2:
		for i := 0; i < len(bucket)-1; i++ {
			for j := i + 1; j < len(bucket); j++ {
				out = append(out, []domain.Card{bucket[i], bucket[j]})
			}
		}
	case 3:
		for i := 0; i < len(bucket)-2; i++ {
			for j := i + 1; j < len(bucket)-1; j++ {
				for k := j + 1; k < len(bucket); k++ {
					out = append(out, []domain.Card{bucket[i], bucket[j], bucket[k]})
				}
			}
		}
	}
	return out
}

// sortPlays orders plays by their strongest card so map iteration does not
// leak into the result order.
func sortPlays(plays [][]domain.Card) {
	sort.Slice(plays, func(i, j int) bool {
		return maxValue(plays[i]) < maxValue(plays[j])
	})
}

func maxValue(cards []domain.Card) int32 {
	max := int32(-1)
	for _, c := range cards {
		if v := c.Value(); v > max {
			max = v
		}
	}
	return max
}
