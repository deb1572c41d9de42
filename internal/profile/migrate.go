package profile

import (
	"encoding/json"

	"github.com/conorfennell/soltrack/internal/domain"
)

// decodeAndMigrate parses the raw persisted value and normalizes every legacy
// shape into the current one. It is total: any input that does not decode to
// a JSON object reports ok=false and the caller falls back to seeding a
// default profile. The pass is idempotent — running it on its own output
// changes nothing.
func decodeAndMigrate(raw string) (domain.ProfileData, bool) {
	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return nil, false
	}
	if loose == nil {
		return nil, false
	}

	data := make(domain.ProfileData, len(loose))
	for id, entry := range loose {
		data[id] = normalizeProfile(id, entry)
	}
	return data, true
}

// normalizeProfile migrates one loosely-typed profile record. Older builds
// stored profiles without displayName (falling back to a legacy "id" field or
// the map key itself) and without metadata. Unknown extra fields are dropped.
func normalizeProfile(key string, entry any) domain.Profile {
	fields, _ := entry.(map[string]any)

	p := domain.Profile{
		DisplayName:   key,
		MasteryStatus: domain.MasteryMap{},
		Metadata:      map[string]any{},
	}

	if name, ok := fields["displayName"].(string); ok && name != "" {
		p.DisplayName = name
	} else if legacy, ok := fields["id"].(string); ok && legacy != "" {
		p.DisplayName = legacy
	}

	if mastery, ok := fields["masteryStatus"].(map[string]any); ok {
		p.MasteryStatus = normalizeMastery(mastery)
	}

	if meta, ok := fields["metadata"].(map[string]any); ok {
		p.Metadata = meta
	}

	return p
}

// normalizeMastery keeps only subject buckets that are objects and entries
// whose value is one of the known statuses. Explicit "not_started" entries
// written by older builds are kept as-is; dropping them would change the
// profile's recorded total.
func normalizeMastery(loose map[string]any) domain.MasteryMap {
	mastery := make(domain.MasteryMap, len(loose))
	for subject, bucket := range loose {
		entries, ok := bucket.(map[string]any)
		if !ok {
			continue
		}
		normalized := make(map[string]domain.MasteryStatus, len(entries))
		for standardID, v := range entries {
			status, ok := v.(string)
			if !ok || !domain.MasteryStatus(status).Valid() {
				continue
			}
			normalized[standardID] = domain.MasteryStatus(status)
		}
		mastery[subject] = normalized
	}
	return mastery
}
