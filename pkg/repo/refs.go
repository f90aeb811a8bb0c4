package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/gitterhq/gitter/pkg/object"
)

// ResolveRef resolves a ref name to an object hash.
//
// Resolution order:
//  1. "HEAD" reads HEAD; a symbolic HEAD resolves its target ref.
//  2. Names starting with "refs/" read .gitter/<name>.
//  3. Anything else tries "refs/heads/<name>".
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if name == "HEAD" {
		head, err := r.Head()
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(head, "refs/") {
			return r.ResolveRef(head)
		}
		// Detached HEAD: the value is a hash.
		return object.Hash(head), nil
	}

	var refPath string
	if strings.HasPrefix(name, "refs/") {
		refPath = filepath.Join(r.GitterDir, filepath.FromSlash(name))
	} else {
		refPath = filepath.Join(r.GitterDir, "refs", "heads", name)
	}

	data, err := os.ReadFile(refPath)
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	return object.Hash(strings.TrimRight(string(data), "\n")), nil
}

// UpdateRef writes a hash to the named ref file under .gitter/ using a
// temp file + rename so the ref is never observed half-written. Parent
// directories are created as needed.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	refPath := filepath.Join(r.GitterDir, filepath.FromSlash(name))

	dir := filepath.Dir(refPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	tmp, err := os.CreateTemp(dir, ".ref-tmp-*")
	if err != nil {
		return fmt.Errorf("update ref %q: tmpfile: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(string(h) + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}

	if err := os.Rename(tmpName, refPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}

	r.log.Debug("updated ref", zap.String("ref", name), zap.String("hash", string(h)))
	return nil
}

// ListRefs lists references under .gitter/refs. Names are returned
// relative to the refs root, e.g. "heads/main".
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := filepath.Join(r.GitterDir, "refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	refs := make(map[string]object.Hash)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		refs[filepath.ToSlash(rel)] = object.Hash(strings.TrimSpace(string(data)))
		return nil
	})
	if os.IsNotExist(err) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

// ResolveRevision resolves a user-supplied revision to a commit hash.
//
// Accepted forms, tried in order:
//  1. "@" as an alias for HEAD, and "HEAD" itself.
//  2. A ref name ("refs/heads/main", or the short branch name "main").
//  3. A full object hash or a unique hash prefix (at least 4 hex chars).
//
// Anything else fails with ErrUnknownRevision.
func (r *Repo) ResolveRevision(rev string) (object.Hash, error) {
	rev = strings.TrimSpace(rev)
	if rev == "@" {
		rev = "HEAD"
	}

	if rev == "HEAD" || strings.HasPrefix(rev, "refs/") {
		h, err := r.ResolveRef(rev)
		if err == nil && h != "" {
			return h, nil
		}
		return "", fmt.Errorf("resolve %q: %w", rev, ErrUnknownRevision)
	}

	// Short branch name.
	if h, err := r.ResolveRef(rev); err == nil && h != "" {
		return h, nil
	}

	// Digest or digest prefix. Only a commit digest is a revision; a blob
	// or tree digest is as unknown as a missing one.
	if object.IsHexHash(rev) {
		h, err := r.Store.ResolvePrefix(rev)
		switch {
		case err == nil:
			objType, _, err := r.Store.Read(h)
			if err != nil {
				return "", fmt.Errorf("resolve %q: %w", rev, err)
			}
			if objType == object.TypeCommit {
				return h, nil
			}
		case !errors.Is(err, object.ErrNotFound):
			return "", fmt.Errorf("resolve %q: %w", rev, err)
		}
	}

	return "", fmt.Errorf("resolve %q: %w", rev, ErrUnknownRevision)
}
