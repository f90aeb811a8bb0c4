package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/gitterhq/gitter/pkg/object"
)

// Category classifies a path by comparing HEAD tree, staging area, and
// working tree. Every path present in any of the three sources falls into
// exactly one category.
type Category int

const (
	Unmodified       Category = iota // same digest across all present sources
	Untracked                        // in working tree only
	Added                            // in staging, not in HEAD tree
	ModifiedStaged                   // staged digest differs from HEAD
	ModifiedUnstaged                 // working tree digest differs from staging
	DeletedStaged                    // in HEAD tree, removed from staging
	DeletedUnstaged                  // staged, missing from working tree
)

func (c Category) String() string {
	switch c {
	case Unmodified:
		return "unmodified"
	case Untracked:
		return "untracked"
	case Added:
		return "added"
	case ModifiedStaged:
		return "modified (staged)"
	case ModifiedUnstaged:
		return "modified (unstaged)"
	case DeletedStaged:
		return "deleted (staged)"
	case DeletedUnstaged:
		return "deleted (unstaged)"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// StatusEntry records the classification of a single path.
type StatusEntry struct {
	Path     string // repo-relative, slash-separated
	Category Category
}

type headTreeState struct {
	BlobHash object.Hash
	Mode     string
}

// Status classifies every path in the union of HEAD tree, staging area,
// and working tree, returning entries sorted by path. It is a pure read:
// no source is mutated, and a fully absent source (no commits yet, empty
// index, empty directory) is tolerated.
//
// Worktree-side differences take precedence over index-side ones, so a
// path that differs both from HEAD and on disk reports the unstaged
// change.
func (r *Repo) Status() ([]StatusEntry, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	workFiles, err := r.workTreeFiles()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	headEntries, err := r.headTreeEntries()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	// Union of all paths across the three sources.
	paths := make(map[string]struct{}, len(workFiles)+len(stg.Entries)+len(headEntries))
	for p := range workFiles {
		paths[p] = struct{}{}
	}
	for p := range stg.Entries {
		paths[p] = struct{}{}
	}
	for p := range headEntries {
		paths[p] = struct{}{}
	}

	entries := make([]StatusEntry, 0, len(paths))
	for p := range paths {
		cat, err := r.classify(p, stg.Entries[p], headEntries, workFiles)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		entries = append(entries, StatusEntry{Path: p, Category: cat})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	r.log.Debug("computed status", zap.Int("paths", len(entries)))
	return entries, nil
}

// classify decides the single category for one path.
func (r *Repo) classify(p string, se *StagingEntry, headEntries map[string]headTreeState, workFiles map[string]bool) (Category, error) {
	onDisk := workFiles[p]
	headState, inHead := headEntries[p]

	if se == nil {
		if !inHead {
			return Untracked, nil
		}
		// In HEAD but unstaged: the deletion is staged for the next
		// commit whether or not a file of that name is still on disk.
		return DeletedStaged, nil
	}

	if !onDisk {
		return DeletedUnstaged, nil
	}

	same, err := r.workMatchesStaged(p, se)
	if err != nil {
		return 0, err
	}
	if !same {
		return ModifiedUnstaged, nil
	}

	if !inHead {
		return Added, nil
	}
	if se.BlobHash != headState.BlobHash || normalizeFileMode(se.Mode) != normalizeFileMode(headState.Mode) {
		return ModifiedStaged, nil
	}
	return Unmodified, nil
}

// workMatchesStaged reports whether the working-tree copy of p still has
// the staged digest. Cached stat metadata short-circuits the comparison
// only when it is trustworthy; otherwise the content is rehashed.
func (r *Repo) workMatchesStaged(p string, se *StagingEntry) (bool, error) {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(p))
	info, err := os.Stat(absPath)
	if err != nil {
		return false, fmt.Errorf("stat %q: %w", p, err)
	}

	workMode := modeFromFileInfo(info)
	if workMode != normalizeFileMode(se.Mode) {
		return false, nil
	}
	if stagingStatMatchesWorktree(se, info) {
		return true, nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return false, fmt.Errorf("read %q: %w", p, err)
	}
	return object.HashObject(object.TypeBlob, content) == se.BlobHash, nil
}

// workTreeFiles collects repo-relative paths of all non-ignored regular
// files in the working tree.
func (r *Repo) workTreeFiles() (map[string]bool, error) {
	ic := NewIgnoreChecker(r.RootDir)

	workFiles := make(map[string]bool)
	err := filepath.WalkDir(r.RootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if rel == "." {
			return nil
		}
		if ic.IsIgnored(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && d.Type().IsRegular() {
			workFiles[rel] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}
	return workFiles, nil
}

// headTreeEntries reads the HEAD commit's tree flattened into path ->
// blob state. A repository with no commits yet (the branch ref file does
// not exist) has an empty HEAD tree; any other failure to read the tree
// propagates so committed paths are never silently reclassified.
func (r *Repo) headTreeEntries() (map[string]headTreeState, error) {
	result := make(map[string]headTreeState)

	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return nil, err
	}
	if headHash == "" {
		return result, nil
	}
	commit, err := r.Store.ReadCommit(headHash)
	if err != nil {
		return nil, fmt.Errorf("read HEAD commit %s: %w", headHash, err)
	}
	entries, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		result[e.Path] = headTreeState{BlobHash: e.BlobHash, Mode: e.Mode}
	}
	return result, nil
}

// A same-size edit within this window of the stat timestamp can evade
// stat-only detection, so the content is rehashed instead.
const racyCleanWindow = 2 * time.Second

func stagingStatMatchesWorktree(se *StagingEntry, info os.FileInfo) bool {
	if se.Size != info.Size() {
		return false
	}
	// Coarse (second-level) mtimes cannot be trusted.
	if info.ModTime().Nanosecond() == 0 {
		return false
	}
	if isRacyCleanModTime(info.ModTime()) {
		return false
	}
	return se.ModTime == info.ModTime().UnixNano()
}

func isRacyCleanModTime(modTime time.Time) bool {
	now := time.Now()
	if modTime.After(now) {
		return true
	}
	return now.Sub(modTime) < racyCleanWindow
}
