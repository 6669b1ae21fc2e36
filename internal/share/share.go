package share

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Service propagates configured files from one worktree into another, by
// symlink or by copy. Existing target files are never overwritten, so a
// repeated run is a no-op.
type Service struct {
	logger *zap.Logger
}

func NewService(logger *zap.Logger) *Service {
	return &Service{
		logger: logger,
	}
}

// Share walks every regular file under source (skipping git metadata) and,
// for each relative path matching a pattern, creates a symlink or copies the
// bytes at the same relative path under target. Symlink patterns win when a
// path matches both lists.
func (s *Service) Share(source, target string, symlinkPatterns, copyPatterns []string) error {
	files, err := collectFiles(source)
	if err != nil {
		return fmt.Errorf("failed to enumerate source files: %w", err)
	}

	for _, rel := range files {
		shouldSymlink := matchesAny(symlinkPatterns, rel)
		shouldCopy := matchesAny(copyPatterns, rel)

		if !shouldSymlink && !shouldCopy {
			continue
		}

		sourceFull := filepath.Join(source, rel)
		targetFull := filepath.Join(target, rel)

		if _, statErr := os.Lstat(targetFull); statErr == nil {
			continue
		}

		if mkErr := os.MkdirAll(filepath.Dir(targetFull), 0o755); mkErr != nil {
			return fmt.Errorf("failed to create target directory: %w", mkErr)
		}

		if shouldSymlink {
			if linkErr := os.Symlink(sourceFull, targetFull); linkErr != nil {
				return fmt.Errorf("failed to symlink %s: %w", rel, linkErr)
			}
			s.logger.Debug("shared file", zap.String("file", rel), zap.String("mode", "symlink"))
			continue
		}

		if copyErr := copyFile(sourceFull, targetFull); copyErr != nil {
			return fmt.Errorf("failed to copy %s: %w", rel, copyErr)
		}
		s.logger.Debug("shared file", zap.String("file", rel), zap.String("mode", "copy"))
	}

	return nil
}

// collectFiles lists every regular file under root as a slash-separated path
// relative to root, excluding anything under a .git directory.
func collectFiles(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Name() == ".git" || !d.Type().IsRegular() {
			return nil
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

func matchesAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if Match(pattern, path) {
			return true
		}
	}

	return false
}

// Match reports whether path matches pattern. Patterns support "**" as an
// arbitrary-depth wildcard splitting the pattern into prefix and suffix, a
// single "*" as an in-component wildcard, and otherwise compare exactly.
func Match(pattern, path string) bool {
	if strings.Contains(pattern, "**") {
		prefix, suffix, _ := strings.Cut(pattern, "**")
		prefix = strings.TrimSuffix(prefix, "/")
		suffix = strings.TrimPrefix(suffix, "/")

		if prefix != "" && !strings.HasPrefix(path, prefix) {
			return false
		}
		if suffix != "" && !strings.HasSuffix(path, suffix) {
			return false
		}

		return true
	}

	if strings.Contains(pattern, "*") {
		prefix, suffix, _ := strings.Cut(pattern, "*")
		return strings.HasPrefix(path, prefix) && strings.HasSuffix(path, suffix)
	}

	return pattern == path
}

func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
