package repo

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gitterhq/gitter/pkg/object"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in CommitObj.Signature.
type CommitSigner func(payload []byte) (string, error)

// LogEntry pairs a commit with its own hash during history traversal.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Commit creates a new commit from the current staging area and advances
// HEAD to it. Nothing is written and HEAD is untouched when the guard
// fails: an empty staging area, or a tree identical to the current HEAD
// commit's tree, aborts with ErrEmptyCommit.
func (r *Repo) Commit(message, author string) (object.Hash, error) {
	return r.CommitWithSigner(message, author, nil)
}

// CommitWithSigner creates a new commit and signs it when signer is
// provided.
func (r *Repo) CommitWithSigner(message, author string, signer CommitSigner) (object.Hash, error) {
	// The identity lives on a single header line of the commit object.
	if strings.ContainsRune(author, '\n') {
		return "", fmt.Errorf("commit: author %q must not contain a newline", author)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if len(stg.Entries) == 0 {
		return "", fmt.Errorf("commit: %w", ErrEmptyCommit)
	}

	treeHash, err := r.BuildTree(stg)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	// Resolve HEAD for the parent link; absent on the first commit.
	var parents []object.Hash
	parentHash, err := r.ResolveRef("HEAD")
	if err == nil && parentHash != "" {
		parents = append(parents, parentHash)

		parent, err := r.Store.ReadCommit(parentHash)
		if err != nil {
			return "", fmt.Errorf("commit: read parent %s: %w", parentHash, err)
		}
		if parent.TreeHash == treeHash {
			return "", fmt.Errorf("commit: %w", ErrEmptyCommit)
		}
	}

	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   parents,
		Author:    author,
		Committer: author,
		Timestamp: time.Now().Unix(),
		Message:   message,
	}
	if signer != nil {
		signature, err := signer(object.CommitSigningPayload(commitObj))
		if err != nil {
			return "", fmt.Errorf("commit: sign commit: %w", err)
		}
		commitObj.Signature = signature
	}

	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	// Advance HEAD: through the branch ref when symbolic, directly when
	// detached. The ref write is the single visible state change; if it
	// fails the new commit object is unreachable and the repository state
	// is unchanged.
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("commit: read HEAD: %w", err)
	}
	target := "HEAD"
	if strings.HasPrefix(head, "refs/") {
		target = head
	}
	if err := r.UpdateRef(target, commitHash); err != nil {
		return "", fmt.Errorf("commit: advance %q: %w", target, err)
	}

	r.log.Info("created commit",
		zap.String("hash", string(commitHash)),
		zap.String("tree", string(treeHash)),
		zap.Int("parents", len(parents)))
	return commitHash, nil
}

// Commits returns a lazy first-parent traversal starting at the given
// commit hash, newest first. The sequence is a pure function of start: it
// holds no cursor state and can be ranged over any number of times. A
// failed object read yields a final (zero entry, error) pair.
func (r *Repo) Commits(start object.Hash) iter.Seq2[LogEntry, error] {
	return func(yield func(LogEntry, error) bool) {
		current := start
		for current != "" {
			c, err := r.Store.ReadCommit(current)
			if err != nil {
				yield(LogEntry{}, fmt.Errorf("log: read commit %s: %w", current, err))
				return
			}
			if !yield(LogEntry{Hash: current, Commit: c}, nil) {
				return
			}
			if len(c.Parents) == 0 {
				return
			}
			// First-parent traversal only.
			current = c.Parents[0]
		}
	}
}

// Log materializes up to limit entries of the history starting at start.
// A limit <= 0 means no limit.
func (r *Repo) Log(start object.Hash, limit int) ([]LogEntry, error) {
	var entries []LogEntry
	for entry, err := range r.Commits(start) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, nil
}
