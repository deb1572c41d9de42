package catalog

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Fingerprint hashes the catalog directory's .json files into a version tag
// for the cache. Content is normalized before hashing so that a re-download
// differing only in line endings or trailing whitespace does not bust the
// cache; any real content change does.
func Fingerprint(dir string) (string, error) {
	type entry struct {
		rel     string
		content string
	}
	var entries []entry

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".json") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{rel: filepath.ToSlash(rel), content: normalize(string(raw))})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint catalog directory %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.rel)
		b.WriteString("\n")
		b.WriteString(e.content)
		b.WriteString("\n")
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(b.String()))), nil
}

func normalize(content string) string {
	c := strings.ReplaceAll(content, "\r\n", "\n")
	return strings.TrimSpace(c)
}
