package judges

import (
	"fmt"
	"sort"

	domain "github.com/bryanwahyu/judgeproxy/internal/domain/judges"
)

// Registry is the static judge table, built once at startup. Read-only
// afterwards so it is safe for concurrent use without locking.
type Registry struct {
	byID  map[domain.ID]domain.Judge
	order []domain.ID
}

// NewRegistry rejects empty and duplicate ids.
func NewRegistry(list []domain.Judge) (*Registry, error) {
	r := &Registry{byID: make(map[domain.ID]domain.Judge, len(list))}
	for _, j := range list {
		if j.ID == "" {
			return nil, fmt.Errorf("judge with empty id")
		}
		if _, dup := r.byID[j.ID]; dup {
			return nil, fmt.Errorf("duplicate judge id: %s", j.ID)
		}
		if !j.Kind.Valid() {
			return nil, fmt.Errorf("judge %s: unknown kind %q", j.ID, j.Kind)
		}
		r.byID[j.ID] = j
		r.order = append(r.order, j.ID)
	}
	return r, nil
}

func (r *Registry) Resolve(id domain.ID) (domain.Judge, bool) {
	j, ok := r.byID[id]
	return j, ok
}

// List returns judges in configuration order.
func (r *Registry) List() []domain.Judge {
	out := make([]domain.Judge, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns the sorted judge ids.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}
