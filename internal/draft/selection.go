package draft

import (
	"container/list"
	"iter"

	"booklet-cli/internal/model"
)

// Selection accumulates picked candidates across every page and filter visited while the
// picker is open. It is owned by the picker dialog and is not safe for concurrent use.
type Selection struct {
	order *list.List // of model.Candidate, insertion order
	byID  map[int64]*list.Element
}

// NewSelection returns a selection seeded with the versions already in the draft.
func NewSelection(seed []Item) *Selection {
	s := &Selection{}
	s.Reset(seed)
	return s
}

// Reset discards all state and re-seeds from the live draft.
func (s *Selection) Reset(seed []Item) {
	s.order = list.New()
	s.byID = make(map[int64]*list.Element, len(seed))
	for _, it := range seed {
		s.insert(it.Candidate())
	}
}

func (s *Selection) insert(c model.Candidate) {
	if _, ok := s.byID[c.VersionID]; ok {
		return
	}
	s.byID[c.VersionID] = s.order.PushBack(c)
}

func (s *Selection) remove(versionID int64) {
	if el, ok := s.byID[versionID]; ok {
		s.order.Remove(el)
		delete(s.byID, versionID)
	}
}

func (s *Selection) Has(versionID int64) bool {
	_, ok := s.byID[versionID]
	return ok
}

func (s *Selection) Len() int { return len(s.byID) }

// Toggle removes versionID if selected, otherwise selects candidate under versionID.
func (s *Selection) Toggle(versionID int64, candidate model.Candidate) {
	if s.Has(versionID) {
		s.remove(versionID)
		return
	}
	candidate.VersionID = versionID
	s.insert(candidate)
}

// AllOnPageSelected reports whether every candidate on the page is selected. An empty page
// is never "all selected".
func (s *Selection) AllOnPageSelected(page []model.Candidate) bool {
	if len(page) == 0 {
		return false
	}
	for _, c := range page {
		if !s.Has(c.VersionID) {
			return false
		}
	}
	return true
}

// ToggleAllOnPage deselects the whole page when it is fully selected, otherwise selects
// every candidate on it. It never flips entries individually.
func (s *Selection) ToggleAllOnPage(page []model.Candidate) {
	if s.AllOnPageSelected(page) {
		for _, c := range page {
			s.remove(c.VersionID)
		}
		return
	}
	for _, c := range page {
		s.insert(c)
	}
}

// Values yields the selected candidates in first-selection order. The sequence reads the
// live set each time it is ranged over.
func (s *Selection) Values() iter.Seq[model.Candidate] {
	return func(yield func(model.Candidate) bool) {
		for el := s.order.Front(); el != nil; el = el.Next() {
			if !yield(el.Value.(model.Candidate)) {
				return
			}
		}
	}
}
