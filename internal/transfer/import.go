// Package transfer implements the import side of profile data exchange:
// payload validation with descriptive rejection reasons, and the preview
// classification shown before a merge is committed. The commit itself is
// Store.Merge; nothing here mutates state, so a rejected payload can never
// leave a partial merge behind.
package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/soltrack/internal/domain"
	"github.com/conorfennell/soltrack/internal/profile"
)

// ImportStatus classifies one profile id in an import preview.
type ImportStatus string

const (
	StatusNew       ImportStatus = "new"       // in the payload only
	StatusOverwrite ImportStatus = "overwrite" // in both; payload wins entirely
	StatusUnchanged ImportStatus = "unchanged" // in the store only
)

// Stats carries a display name plus mastery counts for one side of a
// comparison row.
type Stats struct {
	DisplayName string `json:"displayName"`
	domain.MasteryCount
}

// Comparison is one preview row.
type Comparison struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"displayName"`
	Status      ImportStatus `json:"status"`
	Existing    *Stats       `json:"existingData,omitempty"`
	Incoming    Stats        `json:"importedData"`
}

var validate = validator.New()

// payloadProfile is the loosely-typed shape of one imported entry. The
// distinction between an absent masteryStatus (rejected) and an empty one
// (fine) is visible only before conversion, hence plain string maps here.
type payloadProfile struct {
	DisplayName   *string                      `json:"displayName" validate:"required"`
	MasteryStatus map[string]map[string]string `json:"masteryStatus" validate:"dive,dive,oneof=completed needs_improvement not_started"`
	Metadata      map[string]any               `json:"metadata"`
}

// ParseAndValidate decodes an import payload and rejects it whole unless
// every entry carries a string displayName and an object masteryStatus with
// known status values. The returned error is the human-readable reason.
func ParseAndValidate(text string) (domain.ProfileData, error) {
	if len(text) == 0 {
		return nil, errors.New("no data to import")
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		return nil, fmt.Errorf("invalid data format: %w", err)
	}
	if entries == nil {
		return nil, errors.New("invalid data format: not a profiles object")
	}
	if len(entries) == 0 {
		return nil, errors.New("no profiles found in the imported data")
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data := make(domain.ProfileData, len(entries))
	for _, id := range ids {
		var p payloadProfile
		if err := json.Unmarshal(entries[id], &p); err != nil {
			return nil, fmt.Errorf("invalid profile format for id %s: %w", id, err)
		}
		if p.MasteryStatus == nil {
			// json can't tell us {} from absent, so nil is checked by hand.
			if !hasObjectField(entries[id], "masteryStatus") {
				return nil, fmt.Errorf("invalid profile format for id %s: missing masteryStatus", id)
			}
			p.MasteryStatus = map[string]map[string]string{}
		}
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("invalid profile format for id %s: %w", id, err)
		}
		data[id] = toProfile(p)
	}
	return data, nil
}

func hasObjectField(raw json.RawMessage, field string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	v, ok := fields[field]
	if !ok {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal(v, &obj) == nil && obj != nil
}

func toProfile(p payloadProfile) domain.Profile {
	mastery := make(domain.MasteryMap, len(p.MasteryStatus))
	for subject, bucket := range p.MasteryStatus {
		entries := make(map[string]domain.MasteryStatus, len(bucket))
		for standardID, status := range bucket {
			entries[standardID] = domain.MasteryStatus(status)
		}
		mastery[subject] = entries
	}
	meta := p.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return domain.Profile{
		DisplayName:   *p.DisplayName,
		MasteryStatus: mastery,
		Metadata:      meta,
	}
}

// Preview classifies every profile id present on either side and builds the
// comparison rows shown before commit, ordered new, overwrite, unchanged.
func Preview(current, incoming domain.ProfileData) []Comparison {
	rows := make([]Comparison, 0, len(current)+len(incoming))

	for _, id := range sortedKeys(incoming) {
		in := incoming[id]
		row := Comparison{
			ID:          id,
			DisplayName: in.DisplayName,
			Status:      StatusNew,
			Incoming:    Stats{DisplayName: in.DisplayName, MasteryCount: profile.CountProfile(in)},
		}
		if existing, ok := current[id]; ok {
			row.Status = StatusOverwrite
			row.Existing = &Stats{DisplayName: existing.DisplayName, MasteryCount: profile.CountProfile(existing)}
		}
		rows = append(rows, row)
	}

	for _, id := range sortedKeys(current) {
		if _, ok := incoming[id]; ok {
			continue
		}
		existing := current[id]
		stats := Stats{DisplayName: existing.DisplayName, MasteryCount: profile.CountProfile(existing)}
		rows = append(rows, Comparison{
			ID:          id,
			DisplayName: existing.DisplayName,
			Status:      StatusUnchanged,
			Existing:    &stats,
			Incoming:    stats,
		})
	}

	rank := map[ImportStatus]int{StatusNew: 0, StatusOverwrite: 1, StatusUnchanged: 2}
	sort.SliceStable(rows, func(i, j int) bool {
		return rank[rows[i].Status] < rank[rows[j].Status]
	})
	return rows
}

func sortedKeys(data domain.ProfileData) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
