package catalog

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/conorfennell/soltrack/internal/domain"
	"github.com/conorfennell/soltrack/internal/kv"
)

const mathDoc = `{
	"id": "math-3",
	"title": "Grade 3 Mathematics",
	"subject": "Mathematics",
	"grade": "3",
	"last_updated": "2023-08-01",
	"source_url": "https://example.org/sol/math3",
	"categories": [
		{"id": "ns", "title": "Number Sense", "standards": [
			{"id": "3.1a", "description": "Read and write six-digit numerals."},
			{"id": "3.1b", "description": "Round whole numbers.", "substandards": [
				{"id": "3.1b.i", "description": "Round to the nearest ten."}
			]}
		]}
	]
}`

const scienceDocs = `[
	{
		"id": "sci-ls",
		"title": "Life Science",
		"subject": "Science",
		"grade": "Life Science",
		"last_updated": "2023-08-01",
		"source_url": "https://example.org/sol/ls",
		"categories": [
			{"id": "eco", "title": "Ecosystems", "standards": [
				{"id": "LS.4", "description": "Describe ecosystems."}
			]}
		]
	}
]`

func writeCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"mathematics.json": mathDoc,
		"science.json":     scienceDocs,
		"README.md":        "not a catalog file",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadDir(t *testing.T) {
	dir := writeCatalog(t)
	docs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents (single doc + array), got %d", len(docs))
	}
	// Lexical walk order: mathematics.json before science.json.
	if docs[0].Subject != "Mathematics" || docs[1].Subject != "Science" {
		t.Errorf("Unexpected document order: %s, %s", docs[0].Subject, docs[1].Subject)
	}
	if len(docs[0].Categories[0].Standards) != 2 {
		t.Errorf("Expected standards parsed, got %+v", docs[0].Categories)
	}
	if docs[0].Categories[0].Standards[1].Substandards[0].ID != "3.1b.i" {
		t.Errorf("Expected substandards parsed")
	}
}

func TestLoadDirReportsBadFilesButKeepsGoodOnes(t *testing.T) {
	dir := writeCatalog(t)
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatalf("Failed to write broken file: %v", err)
	}

	docs, err := LoadDir(dir)
	if err == nil {
		t.Errorf("Expected an error mentioning the broken file")
	}
	if len(docs) != 2 {
		t.Errorf("Expected good documents to survive, got %d", len(docs))
	}
}

func TestFingerprint(t *testing.T) {
	dir := writeCatalog(t)
	first, err := Fingerprint(dir)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}

	t.Run("stable across whitespace-only changes", func(t *testing.T) {
		path := filepath.Join(dir, "mathematics.json")
		if err := os.WriteFile(path, []byte(mathDoc+"\n\n"), 0o644); err != nil {
			t.Fatalf("Failed to rewrite file: %v", err)
		}
		got, err := Fingerprint(dir)
		if err != nil {
			t.Fatalf("Fingerprint failed: %v", err)
		}
		if got != first {
			t.Errorf("Expected trailing whitespace not to change the fingerprint")
		}
	})

	t.Run("changes when content changes", func(t *testing.T) {
		path := filepath.Join(dir, "science.json")
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			t.Fatalf("Failed to rewrite file: %v", err)
		}
		got, err := Fingerprint(dir)
		if err != nil {
			t.Fatalf("Fingerprint failed: %v", err)
		}
		if got == first {
			t.Errorf("Expected content change to change the fingerprint")
		}
	})

	t.Run("ignores non-json files", func(t *testing.T) {
		dir := writeCatalog(t)
		base, _ := Fingerprint(dir)
		if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("changed"), 0o644); err != nil {
			t.Fatalf("Failed to rewrite file: %v", err)
		}
		got, _ := Fingerprint(dir)
		if got != base {
			t.Errorf("Expected non-json changes not to change the fingerprint")
		}
	})
}

func TestLoadUsesCacheUntilContentChanges(t *testing.T) {
	dir := writeCatalog(t)
	medium := kv.NewMemory()

	docs, err := Load(medium, dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}

	// Tamper with the cached value: an unchanged directory must be served
	// from the cache, so the tampered copy comes back.
	if err := medium.Set("standardsData", `[{"subject":"Cached"}]`); err != nil {
		t.Fatalf("Failed to tamper with cache: %v", err)
	}
	docs, err = Load(medium, dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Subject != "Cached" {
		t.Errorf("Expected cache hit for unchanged directory, got %d docs", len(docs))
	}

	// A content change busts the cache and reloads from disk.
	if err := os.WriteFile(filepath.Join(dir, "mathematics.json"), []byte(`{"subject":"Mathematics","grade":"4","categories":[]}`), 0o644); err != nil {
		t.Fatalf("Failed to rewrite file: %v", err)
	}
	docs, err = Load(medium, dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 2 || docs[0].Grade != "4" {
		t.Errorf("Expected reload from disk after content change, got %+v", docs)
	}
}

func TestLoadRebuildsUnreadableCache(t *testing.T) {
	dir := writeCatalog(t)
	medium := kv.NewMemory()

	if _, err := Load(medium, dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := medium.Set("standardsData", "{corrupt"); err != nil {
		t.Fatalf("Failed to corrupt cache: %v", err)
	}

	docs, err := Load(medium, dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("Expected rebuild from disk after corrupt cache, got %d docs", len(docs))
	}
}

func TestSelectorsAndFiltering(t *testing.T) {
	docs := []domain.SubjectStandard{
		{Subject: "Mathematics", Grade: "3", Categories: []domain.Category{{Standards: []domain.Standard{{ID: "3.1a"}, {ID: "3.1b"}}}}},
		{Subject: "Mathematics", Grade: "4", Categories: []domain.Category{{Standards: []domain.Standard{{ID: "4.1"}}}}},
		{Subject: "Science", Grade: "3", Categories: []domain.Category{{Standards: []domain.Standard{{ID: "S.3"}}}}},
	}

	if got := Subjects(docs); !reflect.DeepEqual(got, []string{"Mathematics", "Science"}) {
		t.Errorf("Unexpected subjects: %v", got)
	}
	if got := Grades(docs); !reflect.DeepEqual(got, []string{"3", "4"}) {
		t.Errorf("Unexpected grades: %v", got)
	}

	if got := Filter(docs, "Mathematics", ""); len(got) != 2 {
		t.Errorf("Expected 2 Mathematics docs, got %d", len(got))
	}
	if got := Filter(docs, "Mathematics", "4"); len(got) != 1 || got[0].Grade != "4" {
		t.Errorf("Expected the grade 4 Mathematics doc, got %v", got)
	}
	if got := Filter(docs, "", ""); len(got) != 3 {
		t.Errorf("Expected empty selectors to match everything, got %d", len(got))
	}
	if got := Filter(docs, "History", ""); got != nil {
		t.Errorf("Expected no matches for unknown subject, got %v", got)
	}

	if got := LeafCount(docs); got != 4 {
		t.Errorf("Expected 4 leaves, got %d", got)
	}
	if got := LeafCount(Filter(docs, "Science", "")); got != 1 {
		t.Errorf("Expected 1 Science leaf, got %d", got)
	}
}
