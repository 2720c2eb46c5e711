package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DocumentExt is the extension of input documents in a data directory.
const DocumentExt = ".json"

// DocumentEntry is one input document found in a data directory.
type DocumentEntry struct {
	// Path is the absolute file path.
	Path string

	// Key is the store key: the path relative to the data directory,
	// slash separated, without extension.
	Key string

	// Content is the file content.
	Content []byte

	// SHA256 is the hash of the file content.
	SHA256 string
}

// Patterns ignored in every data directory, in addition to its .gitignore.
var defaultIgnorePatterns = []string{
	".git/",
	".ninmem/",
	".DS_Store",
	"*.tmp",
	"*~",
}

// WalkDataDir returns every input document below dir that is not ignored
// by the default patterns or the directory's .gitignore.
func WalkDataDir(dir string) ([]DocumentEntry, error) {
	matcher, err := loadIgnoreMatcher(dir)
	if err != nil {
		return nil, err
	}

	var entries []DocumentEntry
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != dir && isIgnored(dir, path, true, matcher) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isDocument(d.Name()) || isIgnored(dir, path, false, matcher) {
			return nil
		}

		key, err := documentKey(dir, path)
		if err != nil {
			return err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		hash := sha256.Sum256(content)

		entries = append(entries, DocumentEntry{
			Path:    path,
			Key:     key,
			Content: content,
			SHA256:  hex.EncodeToString(hash[:]),
		})
		return nil
	})
	return entries, err
}

// loadIgnoreMatcher combines the default patterns with the patterns of the
// .gitignore at the root of dir, if there is one.
func loadIgnoreMatcher(dir string) (gitignore.Matcher, error) {
	patterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns))
	for _, p := range defaultIgnorePatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	content, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		for line := range strings.SplitSeq(string(content), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, gitignore.ParsePattern(line, nil))
		}
	}

	return gitignore.NewMatcher(patterns), nil
}

func isIgnored(root, path string, isDir bool, matcher gitignore.Matcher) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return true
	}
	return matcher.Match(splitPath(rel), isDir)
}

func isDocument(name string) bool {
	return strings.EqualFold(filepath.Ext(name), DocumentExt) && !strings.HasPrefix(name, ".")
}

func documentKey(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.ToSlash(rel), nil
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
