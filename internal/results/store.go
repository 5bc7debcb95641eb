// Package results holds the current, user-editable result set.
package results

import (
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-cli/internal/model"
)

var (
	// ErrUnknownField is returned by SetField for names that are not row fields.
	ErrUnknownField = eris.New("results: unknown field")
	// ErrReadOnlyField is returned by SetField for raw_line.
	ErrReadOnlyField = eris.New("results: field is read-only")
)

// Listener receives a consistent copy of the result set after each change,
// together with the store version that produced it. Listeners run
// synchronously, in change order, and must not mutate the store.
type Listener func(groups []model.ResultGroup, version uint64)

// Store owns the current result set. All reads return copies, so no caller
// ever observes a partially updated group or row.
type Store struct {
	mu      sync.RWMutex
	groups  []model.ResultGroup
	version uint64

	notifyMu  sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		groups:    []model.ResultGroup{},
		listeners: make(map[int]Listener),
	}
}

// ReplaceAll atomically swaps in a new result set. The input is copied.
func (s *Store) ReplaceAll(groups []model.ResultGroup) {
	next := model.CloneGroups(groups)

	s.mu.Lock()
	s.groups = next
	s.version++
	s.publishLocked()
}

// SetField applies a user edit to one field of one row, coercing raw per
// Coerce. Indices that do not address an existing row are ignored.
func (s *Store) SetField(groupIdx, rowIdx int, field model.Field, raw string) error {
	if !field.Known() {
		return eris.Wrapf(ErrUnknownField, "field %q", string(field))
	}
	if !field.Editable() {
		return eris.Wrapf(ErrReadOnlyField, "field %q", string(field))
	}

	s.mu.Lock()
	if groupIdx < 0 || groupIdx >= len(s.groups) {
		s.mu.Unlock()
		return nil
	}
	items := s.groups[groupIdx].Items
	if rowIdx < 0 || rowIdx >= len(items) {
		s.mu.Unlock()
		return nil
	}

	items[rowIdx].Set(field, Coerce(field, raw))
	s.version++
	s.publishLocked()
	return nil
}

// publishLocked releases s.mu and notifies listeners with the state just
// written. notifyMu is taken before s.mu is released so notifications are
// delivered in the order changes were made.
func (s *Store) publishLocked() {
	snap := model.CloneGroups(s.groups)
	version := s.version

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(s.listeners)) {
		s.listeners[id](snap, version)
	}
}

// OnChange registers fn and returns a function that removes it.
func (s *Store) OnChange(fn Listener) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.listeners, id)
	}
}

// Snapshot returns a deep copy of the current result set.
func (s *Store) Snapshot() []model.ResultGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneGroups(s.groups)
}

// Row returns a copy of one row.
func (s *Store) Row(groupIdx, rowIdx int) (model.ResultRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if groupIdx < 0 || groupIdx >= len(s.groups) {
		return model.ResultRow{}, false
	}
	items := s.groups[groupIdx].Items
	if rowIdx < 0 || rowIdx >= len(items) {
		return model.ResultRow{}, false
	}
	return items[rowIdx], true
}

// Len returns the number of groups.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups)
}

// Version increases by one on every change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Coerce converts a raw edit into a stored value. The empty string clears
// the field. Numeric fields store a finite number when raw parses as one and
// keep raw verbatim otherwise, so intermediate input such as "1.5e" is never
// rejected. Digit separators and hex literals are not numbers here. Other
// fields store raw verbatim.
func Coerce(field model.Field, raw string) model.Value {
	if raw == "" {
		return model.Null()
	}
	if field.Numeric() {
		if f, ok := parseDecimal(strings.TrimSpace(raw)); ok {
			return model.Number(f)
		}
	}
	return model.Text(raw)
}

func parseDecimal(s string) (float64, bool) {
	if strings.ContainsRune(s, '_') {
		return 0, false
	}
	unsigned := strings.TrimLeft(s, "+-")
	if len(unsigned) > 1 && unsigned[0] == '0' && (unsigned[1] == 'x' || unsigned[1] == 'X') {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
