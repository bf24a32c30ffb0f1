package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"kairo-hq/guardrails/pkg/config"
	"kairo-hq/guardrails/pkg/guardrail"
)

// CommitInfo describes the commit rules were last loaded from.
type CommitInfo struct {
	SHA       string    `json:"sha"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Branch    string    `json:"branch"`
}

// GitSource loads rules from a Git repository. The first Load clones the
// repository (or opens an existing clone); later loads pull before reading.
// Rule files are then read exactly like a FileSource rooted at the configured
// path inside the working tree.
type GitSource struct {
	cfg         *config.GitRulesConfig
	auth        AuthProvider
	maxFileSize int64
	logger      *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewGitSource creates a Git source. No network access happens until Load.
func NewGitSource(cfg *config.GitRulesConfig, maxFileSize int64, logger *slog.Logger) (*GitSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("git config cannot be nil")
	}
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if cfg.Clone.LocalPath == "" {
		return nil, fmt.Errorf("clone local path cannot be empty")
	}

	auth, err := NewAuthProvider(&cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GitSource{
		cfg:         cfg,
		auth:        auth,
		maxFileSize: maxFileSize,
		logger:      logger,
	}, nil
}

// Name implements Source.
func (s *GitSource) Name() string { return "git" }

// RulesPath returns the directory or file inside the working tree that rules
// are read from.
func (s *GitSource) RulesPath() string {
	return filepath.Join(s.cfg.Clone.LocalPath, s.cfg.Path)
}

// Load implements Source.
func (s *GitSource) Load(ctx context.Context) ([]guardrail.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		if err := s.clone(ctx); err != nil {
			return nil, err
		}
	} else if err := s.pull(ctx); err != nil {
		return nil, err
	}

	return NewFileSource(s.RulesPath(), s.maxFileSize, s.logger).Load(ctx)
}

// Commit returns the HEAD commit of the local clone.
func (s *GitSource) Commit() (*CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return nil, fmt.Errorf("repository not cloned")
	}

	ref, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}
	commit, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	return &CommitInfo{
		SHA:       commit.Hash.String(),
		Author:    commit.Author.Name,
		Timestamp: commit.Author.When,
		Message:   commit.Message,
		Branch:    s.cfg.Branch,
	}, nil
}

func (s *GitSource) clone(ctx context.Context) error {
	localPath := s.cfg.Clone.LocalPath

	if s.cfg.Clone.CleanOnStart {
		if err := os.RemoveAll(localPath); err != nil {
			return fmt.Errorf("failed to clean existing clone: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(localPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing clone: %w", err)
		}
		s.repo = repo
		s.logger.Info("Opened existing rule repository clone", "path", localPath)
		return s.pull(ctx)
	}

	if err := os.MkdirAll(localPath, 0o755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}

	auth, err := s.auth.GetAuth()
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	repo, err := gogit.PlainCloneContext(cloneCtx, localPath, false, &gogit.CloneOptions{
		URL:           s.cfg.Repository,
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  true,
		Depth:         s.cfg.Clone.Depth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone rule repository: %w", err)
	}
	s.repo = repo

	s.logger.Info("Cloned rule repository",
		"repository", s.cfg.Repository,
		"branch", s.cfg.Branch,
		"auth", s.auth.Type(),
		"duration", time.Since(start),
	)
	return nil
}

func (s *GitSource) pull(ctx context.Context) error {
	worktree, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	auth, err := s.auth.GetAuth()
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	before, _ := s.repo.Head()

	pullCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(s.cfg.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull rule repository: %w", err)
	}

	if after, herr := s.repo.Head(); herr == nil && before != nil && after.Hash() != before.Hash() {
		s.logger.Info("Pulled rule repository changes",
			"from", before.Hash().String()[:12],
			"to", after.Hash().String()[:12],
		)
	}
	return nil
}
