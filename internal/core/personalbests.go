package core

import (
	"container/heap"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valter-silva-au/tracks/pkg/models"
)

// PBResult reports what happened to a session added to a PersonalBests
// ranking. Rank is 1-based and 0 when the session did not make the ranking.
//
// A full ranking admits a session that beats its last entry under the tie
// order, not only a strictly greater value: a session equal in value to the
// last entry but dated earlier replaces it and reports IsNewPersonalBest.
// The ranking is therefore independent of arrival order.
type PBResult struct {
	IsNewPersonalBest bool `json:"is_new_personal_best"`
	Rank              int  `json:"rank,omitempty"`
}

type rankedSession struct {
	session models.ResolvedSession
	value   models.Value
	date    time.Time
	seq     uint64
}

// rankHeap is a min-heap: the root is the lowest ranked session kept.
type rankHeap struct {
	items  []*rankedSession
	better func(a, b *rankedSession) bool
}

func (h rankHeap) Len() int           { return len(h.items) }
func (h rankHeap) Less(i, j int) bool { return h.better(h.items[j], h.items[i]) }
func (h rankHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *rankHeap) Push(x any) { h.items = append(h.items, x.(*rankedSession)) }

func (h *rankHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return item
}

// PersonalBests keeps the K best sessions by one measure. Sessions rank by
// the measure's comparator, highest first. Equal values rank the earlier
// session date first, then the earlier recording time, then the smaller
// session ID. Sessions with distinct IDs are therefore totally ordered and
// the final ranking does not depend on the order they arrive in.
//
// Keeping the ranking costs O(log K) per Add; reporting the rank of a new
// entry adds a scan over the K kept sessions.
type PersonalBests struct {
	schema *Schema
	key    string
	k      int
	cmp    Comparator

	mu   sync.RWMutex
	heap rankHeap
	seq  uint64
}

// NewPersonalBests returns an empty ranking of the k best sessions by key.
func NewPersonalBests(s *Schema, key string, k int) (*PersonalBests, error) {
	def, ok := s.Measure(key)
	if !ok {
		return nil, &SchemaError{Kind: InvalidPreference, Detail: fmt.Sprintf("personal bests key %q is not a measure", key)}
	}
	if !def.Plottable {
		return nil, &SchemaError{Kind: InvalidPreference, Detail: fmt.Sprintf("personal bests key %q is not plottable", key)}
	}
	if k < 1 {
		return nil, &SchemaError{Kind: InvalidPreference, Detail: fmt.Sprintf("personal bests size must be at least 1, got %d", k)}
	}

	pb := &PersonalBests{
		schema: s,
		key:    key,
		k:      k,
		cmp:    s.Comparator(key),
	}
	pb.heap = rankHeap{items: make([]*rankedSession, 0, k), better: pb.better}
	return pb, nil
}

// Key returns the ranking measure.
func (p *PersonalBests) Key() string { return p.key }

// Size returns the number of sessions the ranking keeps.
func (p *PersonalBests) Size() int { return p.k }

func (p *PersonalBests) better(a, b *rankedSession) bool {
	switch p.cmp.Compare(a.value, b.value) {
	case Greater:
		return true
	case Less:
		return false
	}
	if !a.date.Equal(b.date) {
		return a.date.Before(b.date)
	}
	if ra, rb := a.session.RecordedAt, b.session.RecordedAt; !ra.Equal(rb) {
		return ra.Before(rb)
	}
	if a.session.ID != b.session.ID {
		return a.session.ID < b.session.ID
	}
	return a.seq < b.seq
}

// Add offers a resolved session to the ranking.
func (p *PersonalBests) Add(rs models.ResolvedSession) PBResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.add(rs)
}

func (p *PersonalBests) add(rs models.ResolvedSession) PBResult {
	value, ok := rs.Values[p.key]
	if !ok {
		panic(fmt.Sprintf("core: resolved session %q has no %q value", rs.ID, p.key))
	}
	p.seq++
	item := &rankedSession{
		session: rs,
		value:   value,
		date:    rs.Values[p.schema.DateKey()].Time,
		seq:     p.seq,
	}

	switch {
	case p.heap.Len() < p.k:
		heap.Push(&p.heap, item)
	case p.better(item, p.heap.items[0]):
		p.heap.items[0] = item
		heap.Fix(&p.heap, 0)
	default:
		return PBResult{}
	}

	rank := 1
	for _, other := range p.heap.items {
		if other != item && p.better(other, item) {
			rank++
		}
	}
	return PBResult{IsNewPersonalBest: true, Rank: rank}
}

// Rebuild discards the ranking and adds sessions in order.
func (p *PersonalBests) Rebuild(sessions []models.ResolvedSession) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.heap.items = p.heap.items[:0]
	p.seq = 0
	for _, rs := range sessions {
		p.add(rs)
	}
}

func (p *PersonalBests) sorted() []*rankedSession {
	items := append([]*rankedSession(nil), p.heap.items...)
	sort.Slice(items, func(i, j int) bool { return p.better(items[i], items[j]) })
	return items
}

// TopSessions returns the kept sessions, best first.
func (p *PersonalBests) TopSessions() []models.ResolvedSession {
	p.mu.RLock()
	defer p.mu.RUnlock()

	items := p.sorted()
	out := make([]models.ResolvedSession, len(items))
	for i, item := range items {
		out[i] = item.session
	}
	return out
}

// RankLabels returns a label for each entry of TopSessions. Entries whose
// values display the same share the label of the first of them with an "="
// appended: "1", "2=", "2=", "4".
func (p *PersonalBests) RankLabels() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.labels(p.sorted())
}

// Ranked returns TopSessions and RankLabels from a single snapshot.
func (p *PersonalBests) Ranked() ([]models.ResolvedSession, []string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	items := p.sorted()
	out := make([]models.ResolvedSession, len(items))
	for i, item := range items {
		out[i] = item.session
	}
	return out, p.labels(items)
}

func (p *PersonalBests) labels(items []*rankedSession) []string {
	def, _ := p.schema.Measure(p.key)
	labels := make([]string, len(items))
	for i, item := range items {
		if i > 0 && Format(item.value, def) == Format(items[i-1].value, def) {
			if !strings.HasSuffix(labels[i-1], "=") {
				labels[i-1] += "="
			}
			labels[i] = labels[i-1]
			continue
		}
		labels[i] = strconv.Itoa(i + 1)
	}
	return labels
}
