package repo

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreChecker decides which working-tree paths the engine never looks
// at. The metadata directories are always ignored; a .gitterignore file at
// the repository root adds user patterns.
type IgnoreChecker struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern  string
	negated  bool
	dirOnly  bool
	hasSlash bool // pattern contains a slash, so match against the full path
}

// NewIgnoreChecker creates an IgnoreChecker for the given repository root.
func NewIgnoreChecker(repoRoot string) *IgnoreChecker {
	ic := &IgnoreChecker{
		patterns: []ignorePattern{
			{pattern: MetaDirName},
			{pattern: ".git"},
		},
	}

	f, err := os.Open(filepath.Join(repoRoot, ".gitterignore"))
	if err != nil {
		return ic
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p := parseIgnoreLine(scanner.Text()); p != nil {
			ic.patterns = append(ic.patterns, *p)
		}
	}
	return ic
}

// parseIgnoreLine parses one .gitterignore line. Returns nil for blank
// lines and comments.
func parseIgnoreLine(line string) *ignorePattern {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	p := &ignorePattern{}
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	line = strings.TrimPrefix(line, "/")
	p.hasSlash = strings.Contains(line, "/")
	p.pattern = line
	return p
}

// IsIgnored checks whether a relative slash-separated path should be
// ignored. The last matching pattern wins, so negations can re-include
// paths an earlier pattern excluded.
func (ic *IgnoreChecker) IsIgnored(relPath string) bool {
	relPath = filepath.ToSlash(relPath)

	ignored := false
	for _, p := range ic.patterns {
		if p.matches(relPath) {
			ignored = !p.negated
		}
	}
	return ignored
}

// matches reports whether the pattern matches relPath or any of its
// ancestor directories (a matched directory ignores everything under it).
func (p *ignorePattern) matches(relPath string) bool {
	if p.matchesExact(relPath) {
		// dirOnly patterns must not match a leaf file itself; they still
		// match when the path continues below (handled by the prefix
		// walk), so a final exact hit only counts for non-dirOnly.
		if !p.dirOnly {
			return true
		}
	}

	// Ancestor directories.
	for i := 0; i < len(relPath); i++ {
		if relPath[i] == '/' && p.matchesExact(relPath[:i]) {
			return true
		}
	}
	return false
}

func (p *ignorePattern) matchesExact(candidate string) bool {
	target := candidate
	if !p.hasSlash {
		target = path.Base(candidate)
	}
	if ok, err := path.Match(p.pattern, target); err == nil && ok {
		return true
	}
	return p.pattern == target
}
