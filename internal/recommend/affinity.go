// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package recommend

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// Cell is one nonzero entry of an affinity row.
type Cell struct {
	Col   int
	Value float64
}

// AffinityMatrix is a sparse user x item matrix of rating strengths.
// Rows follow ascending user id and columns ascending item id. Indexes are
// only meaningful within the build that produced them.
type AffinityMatrix struct {
	UserIDs []int
	ItemIDs []int
	// Rows holds each user's cells sorted by column.
	Rows [][]Cell

	userIndex map[int]int
	itemIndex map[int]int
}

// BuildAffinity builds the matrix from ledger rows. Every row becomes exactly
// one cell, so duplicate (user, item) pairs and non-positive strengths are
// rejected.
func BuildAffinity(events []RatingEvent) (*AffinityMatrix, error) {
	userSet := make(map[int]struct{})
	itemSet := make(map[int]struct{})
	for _, ev := range events {
		if ev.Strength <= 0 || math.IsNaN(ev.Strength) {
			return nil, &ValidationError{
				Field:  "strength",
				Reason: fmt.Sprintf("user %d item %d has strength %v", ev.UserID, ev.ItemID, ev.Strength),
			}
		}
		userSet[ev.UserID] = struct{}{}
		itemSet[ev.ItemID] = struct{}{}
	}

	m := &AffinityMatrix{
		UserIDs: sortedKeys(userSet),
		ItemIDs: sortedKeys(itemSet),
	}
	m.userIndex = indexOf(m.UserIDs)
	m.itemIndex = indexOf(m.ItemIDs)
	m.Rows = make([][]Cell, len(m.UserIDs))

	seen := make(map[[2]int]struct{}, len(events))
	for _, ev := range events {
		key := [2]int{ev.UserID, ev.ItemID}
		if _, dup := seen[key]; dup {
			return nil, &ValidationError{
				Field:  "ledger",
				Reason: fmt.Sprintf("duplicate rating for user %d item %d", ev.UserID, ev.ItemID),
			}
		}
		seen[key] = struct{}{}
		row := m.userIndex[ev.UserID]
		m.Rows[row] = append(m.Rows[row], Cell{Col: m.itemIndex[ev.ItemID], Value: ev.Strength})
	}
	for _, row := range m.Rows {
		sortCells(row)
	}
	return m, nil
}

// NumUsers returns the row count.
func (m *AffinityMatrix) NumUsers() int { return len(m.UserIDs) }

// NumItems returns the column count.
func (m *AffinityMatrix) NumItems() int { return len(m.ItemIDs) }

// Nonzero returns the number of stored cells.
func (m *AffinityMatrix) Nonzero() int {
	n := 0
	for _, row := range m.Rows {
		n += len(row)
	}
	return n
}

// UserRow returns the row for a user id.
func (m *AffinityMatrix) UserRow(userID int) (int, bool) {
	r, ok := m.userIndex[userID]
	return r, ok
}

// ItemCol returns the column for an item id.
func (m *AffinityMatrix) ItemCol(itemID int) (int, bool) {
	c, ok := m.itemIndex[itemID]
	return c, ok
}

// Value returns the cell at (row, col), or 0.
func (m *AffinityMatrix) Value(row, col int) float64 {
	cells := m.Rows[row]
	i := sort.Search(len(cells), func(i int) bool { return cells[i].Col >= col })
	if i < len(cells) && cells[i].Col == col {
		return cells[i].Value
	}
	return 0
}

// MapBack converts a (row, col) index pair back to (user id, item id).
func (m *AffinityMatrix) MapBack(row, col int) (userID, itemID int) {
	return m.UserIDs[row], m.ItemIDs[col]
}

// RatingValues returns the distinct nonzero strengths in ascending order.
func (m *AffinityMatrix) RatingValues() []float64 {
	set := make(map[float64]struct{})
	for _, row := range m.Rows {
		for _, c := range row {
			set[c.Value] = struct{}{}
		}
	}
	values := make([]float64, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Float64s(values)
	return values
}

// emptyLike returns a matrix with the same shape and index maps and no cells.
func (m *AffinityMatrix) emptyLike() *AffinityMatrix {
	return &AffinityMatrix{
		UserIDs:   m.UserIDs,
		ItemIDs:   m.ItemIDs,
		Rows:      make([][]Cell, len(m.Rows)),
		userIndex: m.userIndex,
		itemIndex: m.itemIndex,
	}
}

// StratifiedSplit partitions every user's ratings into train and test.
// A user with a single rating goes entirely to train; a user with two or
// more keeps at least one rating on each side. The split is a pure function
// of the matrix, ratio and seed.
func StratifiedSplit(m *AffinityMatrix, ratio float64, seed uint64) (train, test *AffinityMatrix) {
	train = m.emptyLike()
	test = m.emptyLike()

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible split, not security sensitive

	for r, row := range m.Rows {
		n := len(row)
		switch n {
		case 0:
			continue
		case 1:
			train.Rows[r] = []Cell{row[0]}
			continue
		}

		nTrain := int(math.Round(ratio * float64(n)))
		nTrain = max(1, min(nTrain, n-1))

		perm := rng.Perm(n)
		tr := make([]Cell, 0, nTrain)
		te := make([]Cell, 0, n-nTrain)
		for i, p := range perm {
			if i < nTrain {
				tr = append(tr, row[p])
			} else {
				te = append(te, row[p])
			}
		}
		sortCells(tr)
		sortCells(te)
		train.Rows[r] = tr
		test.Rows[r] = te
	}
	return train, test
}

func sortCells(cells []Cell) {
	sort.Slice(cells, func(i, j int) bool { return cells[i].Col < cells[j].Col })
}

func sortedKeys(set map[int]struct{}) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func indexOf(ids []int) map[int]int {
	idx := make(map[int]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	return idx
}
