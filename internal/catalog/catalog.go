// Package catalog loads the read-only standards catalog: SubjectStandard
// JSON documents laid out in a directory tree, optionally kept current from a
// git repository. Loaded documents are cached in the durable medium under a
// content-fingerprint version tag so unchanged catalogs skip the re-read.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conorfennell/soltrack/internal/domain"
	"github.com/conorfennell/soltrack/internal/kv"
)

const (
	cacheKey        = "standardsData"
	cacheVersionKey = "standardsDataVersion"
)

// LoadDir reads every .json file under dir as either one SubjectStandard
// document or an array of them, in lexical walk order. Files that fail to
// decode are reported together; documents from good files are still returned.
func LoadDir(dir string) ([]domain.SubjectStandard, error) {
	var docs []domain.SubjectStandard
	var fileErrs []error

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".json") {
			return nil
		}
		fileDocs, parseErr := parseFile(path)
		if parseErr != nil {
			fileErrs = append(fileErrs, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk catalog directory %s: %w", dir, err)
	}
	return docs, errors.Join(fileErrs...)
}

func parseFile(path string) ([]domain.SubjectStandard, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Published files hold either a single document or a flattened array.
	var many []domain.SubjectStandard
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one domain.SubjectStandard
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []domain.SubjectStandard{one}, nil
}

// Load returns the catalog for dir, served from the medium's cache when the
// stored version tag matches the directory's current fingerprint. A stale or
// unreadable cache is dropped and rebuilt from disk.
func Load(medium kv.Store, dir string) ([]domain.SubjectStandard, error) {
	version, err := Fingerprint(dir)
	if err != nil {
		return nil, err
	}

	cachedVersion, _, _ := medium.Get(cacheVersionKey)
	if cachedVersion == version {
		if raw, found, _ := medium.Get(cacheKey); found {
			var docs []domain.SubjectStandard
			if err := json.Unmarshal([]byte(raw), &docs); err == nil {
				return docs, nil
			}
			slog.Warn("Dropping unreadable catalog cache")
			_ = medium.Delete(cacheKey)
			_ = medium.Delete(cacheVersionKey)
		}
	}

	docs, err := LoadDir(dir)
	if err != nil {
		return docs, err
	}

	payload, err := json.Marshal(docs)
	if err != nil {
		return docs, fmt.Errorf("failed to encode catalog cache: %w", err)
	}
	if err := medium.Set(cacheKey, string(payload)); err != nil {
		slog.Warn("Failed to cache catalog", "error", err)
		return docs, nil
	}
	if err := medium.Set(cacheVersionKey, version); err != nil {
		slog.Warn("Failed to record catalog cache version", "error", err)
	}
	return docs, nil
}

// Subjects lists the distinct subjects across docs, sorted.
func Subjects(docs []domain.SubjectStandard) []string {
	return distinct(docs, func(d domain.SubjectStandard) string { return d.Subject })
}

// Grades lists the distinct grades across docs, sorted.
func Grades(docs []domain.SubjectStandard) []string {
	return distinct(docs, func(d domain.SubjectStandard) string { return d.Grade })
}

func distinct(docs []domain.SubjectStandard, field func(domain.SubjectStandard) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range docs {
		if v := field(d); v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Filter narrows docs by subject and/or grade; an empty selector matches
// everything, preserving document order.
func Filter(docs []domain.SubjectStandard, subject, grade string) []domain.SubjectStandard {
	var out []domain.SubjectStandard
	for _, d := range docs {
		if subject != "" && d.Subject != subject {
			continue
		}
		if grade != "" && d.Grade != grade {
			continue
		}
		out = append(out, d)
	}
	return out
}

// LeafCount counts the standard leaves across docs. Substandards are display
// detail, not leaves.
func LeafCount(docs []domain.SubjectStandard) int {
	n := 0
	for _, d := range docs {
		for _, c := range d.Categories {
			n += len(c.Standards)
		}
	}
	return n
}
