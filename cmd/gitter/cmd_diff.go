package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gitterhq/gitter/pkg/diff"
	"github.com/gitterhq/gitter/pkg/object"
	"github.com/gitterhq/gitter/pkg/repo"
)

const diffContextLines = 3

func newDiffCmd() *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "diff [--cached] [revision]",
		Short: "Show changes between working tree, staging area, and commits",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}

			// Select the two sides. Without a revision: working tree vs
			// staging (uncached) or staging vs HEAD (--cached). With a
			// revision the old side is that commit's tree.
			var oldSide, newSide diffSide
			if len(args) > 0 {
				oldSide, err = commitSide(r, args[0])
				if err != nil {
					return err
				}
			} else if cached {
				oldSide, err = commitSide(r, "HEAD")
				if err != nil && !errors.Is(err, repo.ErrUnknownRevision) {
					return err
				}
				// No commits yet: empty old side.
			} else {
				oldSide, err = stagingSide(r)
				if err != nil {
					return err
				}
			}

			if cached {
				newSide, err = stagingSide(r)
			} else {
				newSide, err = worktreeSide(r)
			}
			if err != nil {
				return err
			}

			return renderDiff(cmd.OutOrStdout(), oldSide, newSide)
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "compare the staging area against HEAD (or the given revision)")
	return cmd
}

// diffSide is one side of a tree-level diff: path -> blob digest, plus a
// loader for the content behind a path.
type diffSide struct {
	hashes map[string]object.Hash
	read   func(path string) ([]byte, error)
}

func commitSide(r *repo.Repo, rev string) (diffSide, error) {
	h, err := r.ResolveRevision(rev)
	if err != nil {
		return diffSide{hashes: map[string]object.Hash{}}, err
	}
	commit, err := r.Store.ReadCommit(h)
	if err != nil {
		return diffSide{}, fmt.Errorf("diff: read commit %s: %w", h, err)
	}
	entries, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return diffSide{}, fmt.Errorf("diff: %w", err)
	}

	hashes := make(map[string]object.Hash, len(entries))
	for _, e := range entries {
		hashes[e.Path] = e.BlobHash
	}
	return diffSide{hashes: hashes, read: func(path string) ([]byte, error) {
		blob, err := r.Store.ReadBlob(hashes[path])
		if err != nil {
			return nil, err
		}
		return blob.Data, nil
	}}, nil
}

func stagingSide(r *repo.Repo) (diffSide, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return diffSide{}, err
	}
	hashes := stg.Snapshot()
	return diffSide{hashes: hashes, read: func(path string) ([]byte, error) {
		blob, err := r.Store.ReadBlob(hashes[path])
		if err != nil {
			return nil, err
		}
		return blob.Data, nil
	}}, nil
}

func worktreeSide(r *repo.Repo) (diffSide, error) {
	// Restrict the working-tree side to tracked paths: untracked files
	// have no old side to compare against and belong to status output.
	stg, err := r.ReadStaging()
	if err != nil {
		return diffSide{}, err
	}

	hashes := make(map[string]object.Hash, len(stg.Entries))
	contents := make(map[string][]byte, len(stg.Entries))
	for p := range stg.Entries {
		data, err := os.ReadFile(filepath.Join(r.RootDir, filepath.FromSlash(p)))
		if err != nil {
			if os.IsNotExist(err) {
				continue // deleted from the working tree
			}
			return diffSide{}, fmt.Errorf("diff: read %q: %w", p, err)
		}
		hashes[p] = object.HashObject(object.TypeBlob, data)
		contents[p] = data
	}
	return diffSide{hashes: hashes, read: func(path string) ([]byte, error) {
		return contents[path], nil
	}}, nil
}

// renderDiff prints a unified diff for every path whose digest differs
// between the two sides, in path order.
func renderDiff(out io.Writer, oldSide, newSide diffSide) error {
	pathSet := make(map[string]struct{}, len(oldSide.hashes)+len(newSide.hashes))
	for p := range oldSide.hashes {
		pathSet[p] = struct{}{}
	}
	for p := range newSide.hashes {
		pathSet[p] = struct{}{}
	}

	paths := make([]string, 0, len(pathSet))
	for p := range pathSet {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		oldHash, inOld := oldSide.hashes[p]
		newHash, inNew := newSide.hashes[p]
		if inOld && inNew && oldHash == newHash {
			continue
		}

		var oldData, newData []byte
		var err error
		if inOld {
			if oldData, err = oldSide.read(p); err != nil {
				return fmt.Errorf("diff: read old %q: %w", p, err)
			}
		}
		if inNew {
			if newData, err = newSide.read(p); err != nil {
				return fmt.Errorf("diff: read new %q: %w", p, err)
			}
		}

		if err := printUnified(out, p, oldData, newData); err != nil {
			return err
		}
	}
	return nil
}

// printUnified renders the edit script for one file as a unified diff.
// Binary content is reported, not diffed.
func printUnified(out io.Writer, path string, oldData, newData []byte) error {
	fmt.Fprintf(out, "diff --gitter a/%s b/%s\n", path, path)
	fmt.Fprintf(out, "--- a/%s\n", path)
	fmt.Fprintf(out, "+++ b/%s\n", path)

	script, err := diff.DiffBytes(oldData, newData)
	if err != nil {
		if errors.Is(err, diff.ErrBinaryContent) {
			fmt.Fprintf(out, "binary files differ\n")
			return nil
		}
		return err
	}

	oldLines := diff.SplitLines(oldData)
	newLines := diff.SplitLines(newData)

	lines := flattenScript(script, oldLines, newLines)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	for _, h := range buildHunks(lines, diffContextLines) {
		oldStart, oldCount, newStart, newCount := h.lineRange(lines)
		fmt.Fprintf(out, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)

		for _, dl := range lines[h.start:h.end] {
			switch dl.kind {
			case diff.OpEqual:
				fmt.Fprintf(out, " %s\n", dl.text)
			case diff.OpInsert:
				green.Fprintf(out, "+%s\n", dl.text)
			case diff.OpDelete:
				red.Fprintf(out, "-%s\n", dl.text)
			}
		}
	}
	return nil
}

// renderLine is one output line of a flattened edit script.
type renderLine struct {
	kind diff.OpKind
	text string
}

// flattenScript expands range-carrying ops back into per-line records for
// hunk grouping.
func flattenScript(script []diff.Op, oldLines, newLines []string) []renderLine {
	var lines []renderLine
	for _, op := range script {
		switch op.Kind {
		case diff.OpEqual, diff.OpDelete:
			for i := op.OldStart; i < op.OldEnd; i++ {
				lines = append(lines, renderLine{kind: op.Kind, text: oldLines[i]})
			}
		case diff.OpInsert:
			for i := op.NewStart; i < op.NewEnd; i++ {
				lines = append(lines, renderLine{kind: op.Kind, text: newLines[i]})
			}
		}
	}
	return lines
}

type diffHunk struct {
	start int
	end   int
}

func buildHunks(lines []renderLine, contextLines int) []diffHunk {
	if contextLines < 0 {
		contextLines = 0
	}

	var hunks []diffHunk
	for i, dl := range lines {
		if dl.kind == diff.OpEqual {
			continue
		}

		start := i - contextLines
		if start < 0 {
			start = 0
		}
		end := i + contextLines + 1
		if end > len(lines) {
			end = len(lines)
		}

		if len(hunks) == 0 || start > hunks[len(hunks)-1].end {
			hunks = append(hunks, diffHunk{start: start, end: end})
			continue
		}
		if end > hunks[len(hunks)-1].end {
			hunks[len(hunks)-1].end = end
		}
	}

	return hunks
}

func (h diffHunk) lineRange(lines []renderLine) (oldStart, oldCount, newStart, newCount int) {
	oldLine, newLine := 1, 1
	for i := 0; i < h.start; i++ {
		switch lines[i].kind {
		case diff.OpEqual:
			oldLine++
			newLine++
		case diff.OpDelete:
			oldLine++
		case diff.OpInsert:
			newLine++
		}
	}

	oldStart, newStart = oldLine, newLine

	for i := h.start; i < h.end; i++ {
		switch lines[i].kind {
		case diff.OpEqual:
			oldCount++
			newCount++
		case diff.OpDelete:
			oldCount++
		case diff.OpInsert:
			newCount++
		}
	}

	if oldCount == 0 {
		oldStart--
	}
	if newCount == 0 {
		newStart--
	}

	return oldStart, oldCount, newStart, newCount
}
