package domain

// MasteryStatus is the tri-state progress marker for one standard.
type MasteryStatus string

const (
	StatusCompleted        MasteryStatus = "completed"
	StatusNeedsImprovement MasteryStatus = "needs_improvement"
	StatusNotStarted       MasteryStatus = "not_started"
)

// Valid reports whether s is one of the three known statuses.
func (s MasteryStatus) Valid() bool {
	switch s {
	case StatusCompleted, StatusNeedsImprovement, StatusNotStarted:
		return true
	}
	return false
}

// Substandard is a finer-grained sub-point of a Standard. Substandards are
// displayed but not individually tracked for mastery.
type Substandard struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Standard is a single curriculum skill statement.
type Standard struct {
	ID           string        `json:"id"`
	Description  string        `json:"description"`
	Substandards []Substandard `json:"substandards,omitempty"`
}

// Category groups an ordered list of standards under a title.
type Category struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Standards []Standard `json:"standards"`
}

// SubjectStandard is one published standards document for a subject+grade
// combination. The tree is read-only input; mastery state is attached to its
// leaves by (subject, standard id), never stored inside it.
type SubjectStandard struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Subject     string     `json:"subject"`
	Grade       string     `json:"grade"`
	LastUpdated string     `json:"last_updated"`
	SourceURL   string     `json:"source_url"`
	Categories  []Category `json:"categories"`
}

// MasteryMap maps subject -> standard id -> status. Absence of an entry means
// "not started".
type MasteryMap map[string]map[string]MasteryStatus

// Profile is one tracked individual and their mastery map.
type Profile struct {
	DisplayName   string         `json:"displayName"`
	MasteryStatus MasteryMap     `json:"masteryStatus"`
	Metadata      map[string]any `json:"metadata"`
}

// ProfileData is the full persisted state: profile id -> profile. It is the
// single unit written to the durable medium, and the import/export payload.
type ProfileData map[string]Profile

// ProfileRef is the id/name pair handed to listing callers.
type ProfileRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// MasteryCount aggregates mastery entries. For whole-profile counts Total is
// the number of recorded leaf entries; for filtered counts it is the number
// of standards in the supplied documents.
type MasteryCount struct {
	Completed        int `json:"completed"`
	NeedsImprovement int `json:"needs_improvement"`
	Total            int `json:"total"`
}
