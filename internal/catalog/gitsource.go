package catalog

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
)

// SyncRepo clones the standards repository into dir if it isn't there yet, or
// pulls the latest changes if it is. States published as a git repo (one JSON
// document per subject) stay current this way; the next Load picks up any
// change via the fingerprint.
func SyncRepo(url, dir string) error {
	_, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		slog.Info("Cloning standards repository", "url", url, "dir", dir)
		if _, err := git.PlainClone(dir, false, &git.CloneOptions{URL: url}); err != nil {
			return fmt.Errorf("failed to clone standards repo %s: %w", url, err)
		}
	case err == nil:
		slog.Info("Pulling standards repository", "dir", dir)
		repo, err := git.PlainOpen(dir)
		if err != nil {
			return fmt.Errorf("failed to open standards repo at %s: %w", dir, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree at %s: %w", dir, err)
		}
		if err := worktree.Pull(&git.PullOptions{RemoteName: "origin"}); err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("failed to pull standards repo at %s: %w", dir, err)
		}
	default:
		return fmt.Errorf("error checking catalog path %s: %w", dir, err)
	}
	return nil
}
