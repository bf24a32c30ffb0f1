package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"kairo-hq/guardrails/pkg/guardrail"
	"kairo-hq/guardrails/pkg/guardrail/registry"
)

// DefaultMaxFileSize bounds a single rule file.
const DefaultMaxFileSize = int64(1 << 20)

// ruleFileExts lists the extensions loaded from a directory.
var ruleFileExts = map[string]bool{
	".yaml": true,
	".yml":  true,
	".json": true,
}

// IsRuleFile reports whether path has a rule file extension.
func IsRuleFile(path string) bool {
	return ruleFileExts[strings.ToLower(filepath.Ext(path))]
}

// FileSource loads rules from a single file or from every rule file in a
// directory tree. Files are read in lexical path order so declaration order is
// stable across reloads. Any unreadable or invalid file fails the whole load.
type FileSource struct {
	path        string
	maxFileSize int64
	logger      *slog.Logger
}

// NewFileSource creates a file source. A maxFileSize of zero uses DefaultMaxFileSize.
func NewFileSource(path string, maxFileSize int64, logger *slog.Logger) *FileSource {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:        path,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Path returns the configured file or directory.
func (s *FileSource) Path() string { return s.path }

// Name implements Source.
func (s *FileSource) Name() string { return "file" }

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) ([]guardrail.Rule, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}

	var rules []guardrail.Rule
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fileRules, err := s.loadFile(path)
		if err != nil {
			return nil, err
		}
		rules = append(rules, fileRules...)
	}

	s.logger.Debug("Loaded rule files",
		"path", s.path,
		"files", len(files),
		"rules", len(rules),
	)

	return rules, nil
}

// Files returns the rule files under the configured path in lexical order.
func (s *FileSource) Files() ([]string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, &guardrail.ConfigError{Message: fmt.Sprintf("cannot access rule path %q", s.path), Cause: err}
	}
	if !info.IsDir() {
		return []string{s.path}, nil
	}

	var files []string
	err = filepath.WalkDir(s.path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsRuleFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, &guardrail.ConfigError{Message: fmt.Sprintf("failed to walk rule directory %q", s.path), Cause: err}
	}

	sort.Strings(files)
	return files, nil
}

func (s *FileSource) loadFile(path string) ([]guardrail.Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &guardrail.ConfigError{Message: fmt.Sprintf("cannot access rule file %q", path), Cause: err}
	}
	if info.Size() > s.maxFileSize {
		return nil, &guardrail.ConfigError{
			Message: fmt.Sprintf("rule file %q is %d bytes, limit %d", path, info.Size(), s.maxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &guardrail.ConfigError{Message: fmt.Sprintf("failed to read rule file %q", path), Cause: err}
	}
	if !utf8.Valid(data) {
		return nil, &guardrail.ConfigError{Message: fmt.Sprintf("rule file %q is not valid UTF-8", path)}
	}

	return registry.ParseDocument(data, path)
}
