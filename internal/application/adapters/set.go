package adapters

import (
	"sort"

	"github.com/bryanwahyu/judgeproxy/internal/domain/judges"
)

// Set holds one Adapter per registered judge.
type Set struct {
	byID map[judges.ID]*Adapter
}

// NewSet builds an adapter for every judge with build.
func NewSet(list []judges.Judge, build func(judges.Judge) *Adapter) *Set {
	s := &Set{byID: make(map[judges.ID]*Adapter, len(list))}
	for _, j := range list {
		s.byID[j.ID] = build(j)
	}
	return s
}

func (s *Set) Get(id judges.ID) (*Adapter, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// IDs returns the judge ids in sorted order.
func (s *Set) IDs() []judges.ID {
	out := make([]judges.ID, 0, len(s.byID))
	for id := range s.byID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Wait drains background writes of every adapter. Used on shutdown.
func (s *Set) Wait() {
	for _, a := range s.byID {
		a.Wait()
	}
}
