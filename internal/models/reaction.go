package models

import (
	"sort"
	"time"
)

// Reaction is one (message, reactor, emoji) triple. The triple is unique:
// a second insert is a no-op and a delete removes exactly one logical
// reaction.
type Reaction struct {
	MessageID int       `db:"message_id" json:"message_id"`
	ReactorID int       `db:"reactor_id" json:"reactor_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ReactionAggregate collapses a message's reactions for one viewer.
type ReactionAggregate struct {
	Emoji string `db:"emoji" json:"emoji"`
	Count int    `db:"count" json:"count"`
	Mine  bool   `db:"mine" json:"mine"`
}

// SortAggregates orders aggregates count-descending, ties broken by emoji
// lexical order. Display order is stable across reloads.
func SortAggregates(aggs []ReactionAggregate) {
	sort.SliceStable(aggs, func(i, j int) bool {
		if aggs[i].Count != aggs[j].Count {
			return aggs[i].Count > aggs[j].Count
		}
		return aggs[i].Emoji < aggs[j].Emoji
	})
}
