// Package profile implements the profile & mastery store: an in-memory map of
// profiles flushed write-through to a durable key/value medium after every
// mutation. Read paths are total — missing profiles, subjects, or standards
// produce defaults, never errors. Write paths against a missing profile are
// silent no-ops; the only errors surfaced are persistence failures, and the
// in-memory state stays authoritative even then.
package profile

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/conorfennell/soltrack/internal/domain"
	"github.com/conorfennell/soltrack/internal/kv"
)

const storageKey = "profiles"

// DefaultDisplayName is given to the profile seeded on first run.
const DefaultDisplayName = "Student (update in settings)"

// Store owns all profile records. It serializes access internally because the
// web layer calls it from concurrent handlers; the durable medium itself is
// still last-write-wins across processes (see DESIGN.md).
type Store struct {
	mu     sync.RWMutex
	medium kv.Store
	data   domain.ProfileData
	order  []string // profile ids, creation order (sorted on load)
	active string
}

// Load reads and migrates the persisted state. A missing, unparsable, or
// empty record is not an error: it degrades to seeding exactly one default
// profile, which is persisted immediately.
func Load(medium kv.Store) (*Store, error) {
	s := &Store{medium: medium}

	raw, found, err := medium.Get(storageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile data: %w", err)
	}

	if found {
		if data, ok := decodeAndMigrate(raw); ok && len(data) > 0 {
			s.data = data
			s.order = sortedIDs(data)
			s.active = s.order[0]
			return s, nil
		}
	}

	id := uuid.NewString()
	s.data = domain.ProfileData{id: {
		DisplayName:   DefaultDisplayName,
		MasteryStatus: domain.MasteryMap{},
		Metadata:      map[string]any{},
	}}
	s.order = []string{id}
	s.active = id
	if err := s.flush(); err != nil {
		return nil, err
	}
	return s, nil
}

func sortedIDs(data domain.ProfileData) []string {
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// flush writes the whole state through to the medium. Callers hold s.mu.
func (s *Store) flush() error {
	payload, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to encode profile data: %w", err)
	}
	if err := s.medium.Set(storageKey, string(payload)); err != nil {
		return fmt.Errorf("failed to persist profile data: %w", err)
	}
	return nil
}

// Active returns the currently selected profile id.
func (s *Store) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActive selects the profile the mastery operations act on. Selecting an
// unknown id is ignored.
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; ok {
		s.active = id
	}
}

// Get returns one profile by id.
func (s *Store) Get(id string) (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[id]
	return p, ok
}

// GetMastery looks up the active profile's status for one standard. A missing
// profile, subject, or standard reads as "not started".
func (s *Store) GetMastery(subject, standardID string) domain.MasteryStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.masteryOf(s.active, subject, standardID)
}

// MasteryFor is GetMastery against an explicit profile id.
func (s *Store) MasteryFor(profileID, subject, standardID string) domain.MasteryStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.masteryOf(profileID, subject, standardID)
}

func (s *Store) masteryOf(profileID, subject, standardID string) domain.MasteryStatus {
	p, ok := s.data[profileID]
	if !ok {
		return domain.StatusNotStarted
	}
	if status, ok := p.MasteryStatus[subject][standardID]; ok {
		return status
	}
	return domain.StatusNotStarted
}

// UpdateMastery upserts one leaf entry under the active profile, creating the
// subject bucket if needed. Absence is the canonical representation of
// "not started", so writing that status removes the entry instead.
// Updating against a missing profile is a silent no-op.
func (s *Store) UpdateMastery(subject, standardID string, status domain.MasteryStatus) error {
	return s.UpdateMasteryFor(s.Active(), subject, standardID, status)
}

// UpdateMasteryFor is UpdateMastery against an explicit profile id.
func (s *Store) UpdateMasteryFor(profileID, subject, standardID string, status domain.MasteryStatus) error {
	if status == domain.StatusNotStarted {
		return s.ClearMasteryFor(profileID, subject, standardID)
	}
	if !status.Valid() {
		return fmt.Errorf("unknown mastery status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[profileID]
	if !ok {
		return nil
	}
	if p.MasteryStatus == nil {
		p.MasteryStatus = domain.MasteryMap{}
	}
	if p.MasteryStatus[subject] == nil {
		p.MasteryStatus[subject] = map[string]domain.MasteryStatus{}
	}
	p.MasteryStatus[subject][standardID] = status
	s.data[profileID] = p
	return s.flush()
}

// ClearMastery removes one leaf entry under the active profile. Clearing an
// absent entry, subject, or profile is a no-op.
func (s *Store) ClearMastery(subject, standardID string) error {
	return s.ClearMasteryFor(s.Active(), subject, standardID)
}

// ClearMasteryFor is ClearMastery against an explicit profile id.
func (s *Store) ClearMasteryFor(profileID, subject, standardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[profileID]
	if !ok {
		return nil
	}
	bucket, ok := p.MasteryStatus[subject]
	if !ok {
		return nil
	}
	if _, ok := bucket[standardID]; !ok {
		return nil
	}
	delete(bucket, standardID)
	return s.flush()
}

// CreateProfile inserts a profile under a fresh random id and returns the id.
func (s *Store) CreateProfile(name string, metadata map[string]any) (string, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.data[id] = domain.Profile{
		DisplayName:   name,
		MasteryStatus: domain.MasteryMap{},
		Metadata:      metadata,
	}
	s.order = append(s.order, id)
	return id, s.flush()
}

// DeleteProfile removes a profile. Deleting an unknown id is a no-op, and the
// active-profile pointer is deliberately left alone — reassigning it is the
// presentation layer's job.
func (s *Store) DeleteProfile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return nil
	}
	delete(s.data, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.flush()
}

// UpdateDisplayName replaces a profile's display name. Unknown ids are a
// no-op; ids never change once created.
func (s *Store) UpdateDisplayName(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[id]
	if !ok {
		return nil
	}
	p.DisplayName = name
	s.data[id] = p
	return s.flush()
}

// Profiles lists every stored profile in creation order.
func (s *Store) Profiles() []domain.ProfileRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]domain.ProfileRef, 0, len(s.order))
	for _, id := range s.order {
		refs = append(refs, domain.ProfileRef{ID: id, DisplayName: s.data[id].DisplayName})
	}
	return refs
}

// MasteryCount aggregates over everything recorded for one profile. Total is
// the number of recorded leaf entries, so a legacy explicit "not_started"
// entry counts toward Total without counting as progress. An unknown id
// yields all zeros.
func (s *Store) MasteryCount(id string) domain.MasteryCount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.data[id]
	if !ok {
		return domain.MasteryCount{}
	}
	return CountProfile(p)
}

// CountProfile tallies the recorded entries of a profile that need not be in
// any store, e.g. one parsed from an import payload.
func CountProfile(p domain.Profile) domain.MasteryCount {
	var c domain.MasteryCount
	for _, bucket := range p.MasteryStatus {
		for _, status := range bucket {
			c.Total++
			switch status {
			case domain.StatusCompleted:
				c.Completed++
			case domain.StatusNeedsImprovement:
				c.NeedsImprovement++
			}
		}
	}
	return c
}

// CountForDocuments derives stats for one profile scoped to the standards in
// the supplied documents: Total is the number of standard leaves in the
// documents, not the number of recorded entries. Standards the profile has
// never touched read as not started and only widen the gap between Total and
// the progress counts.
func (s *Store) CountForDocuments(id string, docs []domain.SubjectStandard) domain.MasteryCount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c domain.MasteryCount
	p, ok := s.data[id]
	for _, doc := range docs {
		for _, cat := range doc.Categories {
			for _, std := range cat.Standards {
				c.Total++
				if !ok {
					continue
				}
				switch p.MasteryStatus[doc.Subject][std.ID] {
				case domain.StatusCompleted:
					c.Completed++
				case domain.StatusNeedsImprovement:
					c.NeedsImprovement++
				}
			}
		}
	}
	return c
}

// Snapshot returns a copy of the full state, safe to hold across later
// mutations. Metadata values are shared, mastery maps are not.
func (s *Store) Snapshot() domain.ProfileData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(domain.ProfileData, len(s.data))
	for id, p := range s.data {
		mastery := make(domain.MasteryMap, len(p.MasteryStatus))
		for subject, bucket := range p.MasteryStatus {
			entries := make(map[string]domain.MasteryStatus, len(bucket))
			for k, v := range bucket {
				entries[k] = v
			}
			mastery[subject] = entries
		}
		p.MasteryStatus = mastery
		out[id] = p
	}
	return out
}

// Merge applies an import: incoming profiles fully replace existing ones on
// id collision, untouched profiles survive, and the result is committed in a
// single write. Callers validate the payload first (internal/transfer); no
// partial merge is possible because the in-memory swap and flush happen
// together.
func (s *Store) Merge(incoming domain.ProfileData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added []string
	for id, p := range incoming {
		if _, exists := s.data[id]; !exists {
			added = append(added, id)
		}
		if p.MasteryStatus == nil {
			p.MasteryStatus = domain.MasteryMap{}
		}
		if p.Metadata == nil {
			p.Metadata = map[string]any{}
		}
		s.data[id] = p
	}
	sort.Strings(added)
	s.order = append(s.order, added...)
	return s.flush()
}

// Export renders the full state as pretty-printed JSON, byte-compatible with
// the import payload: exporting and importing into an empty store reproduces
// the same profiles under the same ids.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile data: %w", err)
	}
	return payload, nil
}
