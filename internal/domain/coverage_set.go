package domain

import (
	"encoding/json"

	"github.com/google/btree"
)

// StatementID identifies one instrumented code location.
type StatementID int

const coverageSetDegree = 32

// CoverageSet is an ordered set of executed statement ids.
// The zero value is an empty set ready to use. It is not safe for
// concurrent mutation.
type CoverageSet struct {
	tree *btree.BTreeG[StatementID]
}

// NewCoverageSet returns a set holding the given ids.
func NewCoverageSet(ids ...StatementID) *CoverageSet {
	s := &CoverageSet{}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func lessStatement(a, b StatementID) bool { return a < b }

// Add inserts id and reports whether it was not already present.
func (s *CoverageSet) Add(id StatementID) bool {
	if s.tree == nil {
		s.tree = btree.NewG(coverageSetDegree, lessStatement)
	}
	_, found := s.tree.ReplaceOrInsert(id)
	return !found
}

// Contains reports whether id is in the set.
func (s *CoverageSet) Contains(id StatementID) bool {
	if s == nil || s.tree == nil {
		return false
	}
	return s.tree.Has(id)
}

// Len returns the number of distinct ids.
func (s *CoverageSet) Len() int {
	if s == nil || s.tree == nil {
		return 0
	}
	return s.tree.Len()
}

// Ascend calls fn for each id in ascending order until fn returns false.
func (s *CoverageSet) Ascend(fn func(StatementID) bool) {
	if s == nil || s.tree == nil {
		return
	}
	s.tree.Ascend(btree.ItemIteratorG[StatementID](fn))
}

// IDs returns the ids in ascending order.
func (s *CoverageSet) IDs() []StatementID {
	ids := make([]StatementID, 0, s.Len())
	s.Ascend(func(id StatementID) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// Union adds every id of other to s and returns the number of new ids.
func (s *CoverageSet) Union(other *CoverageSet) int {
	added := 0
	other.Ascend(func(id StatementID) bool {
		if s.Add(id) {
			added++
		}
		return true
	})
	return added
}

// MarshalJSON encodes the set as an ascending array.
func (s *CoverageSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON decodes an array of ids, collapsing duplicates.
func (s *CoverageSet) UnmarshalJSON(data []byte) error {
	var ids []StatementID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	s.tree = nil
	for _, id := range ids {
		s.Add(id)
	}
	return nil
}
