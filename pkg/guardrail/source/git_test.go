package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"kairo-hq/guardrails/pkg/config"
)

func commitFile(t *testing.T, repo *gogit.Repository, dir, name, content, message string) {
	t.Helper()

	writeFile(t, filepath.Join(dir, name), content)

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err = wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestGitSourceCloneAndPull(t *testing.T) {
	upstream := t.TempDir()
	repo, err := gogit.PlainInit(upstream, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	commitFile(t, repo, upstream, "rules/base.yaml", ruleYAML("base"), "add base rules")

	cfg := &config.GitRulesConfig{
		Repository: upstream,
		Branch:     "master",
		Path:       "rules",
		Auth:       config.GitAuthConfig{Type: "none"},
		Clone:      config.GitCloneConfig{LocalPath: filepath.Join(t.TempDir(), "clone")},
		Timeout:    10 * time.Second,
	}

	src, err := NewGitSource(cfg, 0, nil)
	if err != nil {
		t.Fatalf("NewGitSource() error = %v", err)
	}

	rules, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("first Load() error = %v", err)
	}
	if ruleIDs(rules) != "base" {
		t.Fatalf("rules = %s, want base", ruleIDs(rules))
	}

	commitFile(t, repo, upstream, "rules/extra.yaml", ruleYAML("extra"), "add extra rules")

	rules, err = src.Load(context.Background())
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if ruleIDs(rules) != "base,extra" {
		t.Errorf("rules after pull = %s, want base,extra", ruleIDs(rules))
	}

	commit, err := src.Commit()
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if commit.Message != "add extra rules" || commit.Branch != "master" {
		t.Errorf("Commit() = %+v", commit)
	}
}

func TestNewGitSourceValidation(t *testing.T) {
	base := config.GitRulesConfig{
		Repository: "https://example.com/rules.git",
		Branch:     "main",
		Auth:       config.GitAuthConfig{Type: "none"},
		Clone:      config.GitCloneConfig{LocalPath: "/tmp/rules"},
	}

	tests := []struct {
		name   string
		modify func(*config.GitRulesConfig)
	}{
		{"no repository", func(c *config.GitRulesConfig) { c.Repository = "" }},
		{"no branch", func(c *config.GitRulesConfig) { c.Branch = "" }},
		{"no local path", func(c *config.GitRulesConfig) { c.Clone.LocalPath = "" }},
		{"token without token", func(c *config.GitRulesConfig) { c.Auth.Type = "token" }},
		{"unknown auth", func(c *config.GitRulesConfig) { c.Auth.Type = "kerberos" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			if _, err := NewGitSource(&cfg, 0, nil); err == nil {
				t.Error("NewGitSource() expected error")
			}
		})
	}

	if _, err := NewGitSource(nil, 0, nil); err == nil {
		t.Error("NewGitSource(nil) expected error")
	}
}

func TestAuthProviders(t *testing.T) {
	dir := t.TempDir()
	openKey := filepath.Join(dir, "open_key")
	if err := os.WriteFile(openKey, []byte("not a key"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		cfg      config.GitAuthConfig
		wantType string
		wantErr  bool
	}{
		{"none", config.GitAuthConfig{Type: "none"}, "none", false},
		{"empty means none", config.GitAuthConfig{}, "none", false},
		{"token", config.GitAuthConfig{Type: "token", Token: "ghp_abc"}, "token", false},
		{"ssh key too open", config.GitAuthConfig{Type: "ssh", SSHKeyPath: openKey}, "ssh", true},
		{"ssh key missing", config.GitAuthConfig{Type: "ssh", SSHKeyPath: filepath.Join(dir, "missing")}, "ssh", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewAuthProvider(&tt.cfg)
			if err != nil {
				t.Fatalf("NewAuthProvider() error = %v", err)
			}
			if p.Type() != tt.wantType {
				t.Errorf("Type() = %q, want %q", p.Type(), tt.wantType)
			}
			_, err = p.GetAuth()
			if (err != nil) != tt.wantErr {
				t.Errorf("GetAuth() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
