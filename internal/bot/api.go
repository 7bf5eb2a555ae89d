// Package bot implements the server-side greedy bot. It enumerates legal
// plays through the game engine's own validation, so it carries no rule
// logic of its own.
package bot

import "thirteen/internal/domain"

// Evaluation groups the legal plays found in a hand by combo category.
type Evaluation struct {
	Singles [][]domain.Card
	Pairs   [][]domain.Card
	Triples [][]domain.Card
	Quads   [][]domain.Card
	Runs    [][]domain.Card
	Bombs   [][]domain.Card
}

// All returns every play of the evaluation in category order.
func (e Evaluation) All() [][]domain.Card {
	var all [][]domain.Card
	all = append(all, e.Singles...)
	all = append(all, e.Pairs...)
	all = append(all, e.Triples...)
	all = append(all, e.Quads...)
	all = append(all, e.Runs...)
	all = append(all, e.Bombs...)
	return all
}
