// Package skeleton keeps the local copy of the skeleton repository current.
package skeleton

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	oerrors "github.com/envctl/envctl/internal/errors"
	"github.com/envctl/envctl/internal/output"
)

// Source is a directory of skeleton versions, optionally backed by a git
// repository.
type Source struct {
	// Dir holds one subdirectory per skeleton version.
	Dir string

	// Repository is the clone URL. Empty disables Sync.
	Repository string

	// Branch to track. Empty follows the remote HEAD.
	Branch string
}

// Sync clones the repository into Dir when it is absent and pulls it otherwise.
func (s *Source) Sync(ctx context.Context) error {
	if s.Repository == "" {
		return nil
	}

	repo, err := git.PlainOpen(s.Dir)
	switch {
	case errors.Is(err, git.ErrRepositoryNotExists):
		return s.clone(ctx)
	case err != nil:
		return fmt.Errorf("opening skeleton repository %s: %w", s.Dir, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening skeleton worktree: %w", err)
	}

	opts := &git.PullOptions{RemoteName: git.DefaultRemoteName, SingleBranch: true}
	if s.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(s.Branch)
	}

	err = wt.PullContext(ctx, opts)
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		output.Debug("skeletons up to date", "dir", s.Dir)
		return nil
	case err != nil:
		return fmt.Errorf("pulling skeletons: %w", oerrors.Wrap(oerrors.ErrConnectivity, err.Error()))
	}

	if head, err := repo.Head(); err == nil {
		output.Info("updated skeletons", "commit", head.Hash().String()[:7])
	}
	return nil
}

func (s *Source) clone(ctx context.Context) error {
	opts := &git.CloneOptions{URL: s.Repository, SingleBranch: true}
	if s.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(s.Branch)
	}

	_, statErr := os.Stat(s.Dir)
	existed := statErr == nil

	output.Info("cloning skeletons", "repository", s.Repository, "dir", s.Dir)
	if _, err := git.PlainCloneContext(ctx, s.Dir, false, opts); err != nil {
		if !existed {
			os.RemoveAll(s.Dir) //nolint:errcheck,gosec // partial clone
		}
		return fmt.Errorf("cloning skeletons: %w", oerrors.Wrap(oerrors.ErrConnectivity, err.Error()))
	}
	return nil
}

// Versions lists the available skeleton versions in lexical order.
func (s *Source) Versions() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading skeletons: %w", err)
	}

	versions := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			versions = append(versions, entry.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}
