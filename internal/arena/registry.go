package arena

import (
	"sort"
	"time"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/models"
)

// Registry owns every match from creation until eviction. Owned by the arena goroutine.
type Registry struct {
	matches map[int64]*models.Match
	order   []int64
}

func NewRegistry() *Registry {
	return &Registry{matches: make(map[int64]*models.Match)}
}

func (r *Registry) Add(m *models.Match) {
	if _, ok := r.matches[m.ID]; !ok {
		r.order = append(r.order, m.ID)
	}
	r.matches[m.ID] = m
}

func (r *Registry) Get(id int64) (*models.Match, bool) {
	m, ok := r.matches[id]
	return m, ok
}

func (r *Registry) Len() int { return len(r.matches) }

// Active returns in-progress matches in creation order.
func (r *Registry) Active() []*models.Match {
	out := make([]*models.Match, 0, len(r.order))
	for _, id := range r.order {
		if m := r.matches[id]; m.Status == models.StatusActive {
			out = append(out, m)
		}
	}
	return out
}

// Evict drops terminal matches whose grace period has run out and returns their ids.
func (r *Registry) Evict(now time.Time, grace time.Duration) []int64 {
	var gone []int64
	kept := r.order[:0]
	for _, id := range r.order {
		m := r.matches[id]
		if m.Status.Terminal() && m.EndedAt != nil && !now.Before(m.EndedAt.Add(grace)) {
			delete(r.matches, id)
			gone = append(gone, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return gone
}

// Snapshots copies every registered match, sorted by id.
func (r *Registry) Snapshots() []models.Match {
	out := make([]models.Match, 0, len(r.matches))
	for _, m := range r.matches {
		out = append(out, m.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
