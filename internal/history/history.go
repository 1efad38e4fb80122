// Package history keeps git snapshots of the graph file.
//
// Snapshots are plain commits in a repository rooted at the graph file's
// directory. They are an operator convenience for recovering earlier graph
// states; the store itself never reads them.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNoChanges is returned when the graph file is unchanged since the last
// snapshot.
var ErrNoChanges = errors.New("graph file unchanged since last snapshot")

// Snapshot describes one recorded graph state.
type Snapshot struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

// Commit records the current graph file as a snapshot commit and returns
// its hash. The repository is created on first use.
func Commit(dir, file, message string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(dir, false)
	}
	if err != nil {
		return "", fmt.Errorf("opening snapshot repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("opening worktree: %w", err)
	}

	if _, err := wt.Add(file); err != nil {
		return "", fmt.Errorf("staging %s: %w", file, err)
	}

	status, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("checking status: %w", err)
	}
	if status.IsClean() {
		return "", ErrNoChanges
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "engram",
			Email: "engram@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("committing snapshot: %w", err)
	}
	return hash.String(), nil
}

// Log returns up to limit snapshots, newest first. A repository that does
// not exist yet yields an empty log.
func Log(dir string, limit int) ([]Snapshot, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening snapshot repository: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("reading snapshot log: %w", err)
	}
	defer iter.Close()

	var snapshots []Snapshot
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(snapshots) >= limit {
			return errStopIteration
		}
		snapshots = append(snapshots, Snapshot{
			Hash:    c.Hash.String(),
			Message: c.Message,
			When:    c.Author.When,
		})
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, err
	}
	return snapshots, nil
}

var errStopIteration = errors.New("stop iteration")
