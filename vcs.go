package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// the repository operations a build needs. each call blocks until done.
type VersionControl interface {
	Pull(ctx context.Context, dir string) error
	UpdateSubmodules(ctx context.Context, dir string) error
	// stages and commits any pending changes, then pushes. a clean tree is left alone.
	Commit(ctx context.Context, dir string, message string) error
}

// `VersionControl` backed by go-git.
// folders outside of a repository are skipped.
type GitVCS struct {
	// signature used when the repository has no configured user.
	Fallback object.Signature
}

func NewGitVCS() *GitVCS {
	return &GitVCS{Fallback: object.Signature{Name: "upmod", Email: "upmod@localhost"}}
}

func vcs_error(op, dir string, err error) error {
	return fmt.Errorf("%w: %s failed in %s: %w", ErrVersionControl, op, dir, err)
}

// opens the repository containing `dir`, or returns nil if there isn't one.
func (g *GitVCS) open(dir string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		slog.Debug("not a repository, skipping version control", "dir", dir)
		return nil, nil
	}
	if err != nil {
		return nil, vcs_error("open", dir, err)
	}
	return repo, nil
}

func (g *GitVCS) Pull(ctx context.Context, dir string) error {
	repo, err := g.open(dir)
	if repo == nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return vcs_error("pull", dir, err)
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: git.DefaultRemoteName})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return vcs_error("pull", dir, err)
	}
	slog.Debug("pulled", "dir", dir)
	return nil
}

func (g *GitVCS) UpdateSubmodules(ctx context.Context, dir string) error {
	repo, err := g.open(dir)
	if repo == nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return vcs_error("submodule update", dir, err)
	}
	subs, err := wt.Submodules()
	if err != nil {
		return vcs_error("submodule update", dir, err)
	}
	if len(subs) == 0 {
		return nil
	}
	err = subs.UpdateContext(ctx, &git.SubmoduleUpdateOptions{
		Init:              true,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	})
	if err != nil {
		return vcs_error("submodule update", dir, err)
	}
	slog.Debug("submodules updated", "dir", dir, "num", len(subs))
	return nil
}

// author for new commits, from git config if possible.
func (g *GitVCS) author(repo *git.Repository) *object.Signature {
	sig := g.Fallback
	cfg, err := repo.ConfigScoped(config.GlobalScope)
	if err == nil && cfg.User.Name != "" {
		sig.Name = cfg.User.Name
		sig.Email = cfg.User.Email
	}
	sig.When = time.Now()
	return &sig
}

func (g *GitVCS) Commit(ctx context.Context, dir string, message string) error {
	repo, err := g.open(dir)
	if repo == nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return vcs_error("status", dir, err)
	}
	status, err := wt.Status()
	if err != nil {
		return vcs_error("status", dir, err)
	}
	if status.IsClean() {
		slog.Debug("nothing to commit", "dir", dir)
		return nil
	}

	err = wt.AddWithOptions(&git.AddOptions{All: true})
	if err != nil {
		return vcs_error("add", dir, err)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: g.author(repo)})
	if err != nil {
		return vcs_error("commit", dir, err)
	}
	slog.Info("committed", "dir", dir, "commit", hash.String()[:7])

	err = repo.PushContext(ctx, &git.PushOptions{RemoteName: git.DefaultRemoteName})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return vcs_error("push", dir, err)
	}
	return nil
}
