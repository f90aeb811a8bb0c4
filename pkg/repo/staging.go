package repo

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/gitterhq/gitter/pkg/object"
)

const stagingVersion = 1

// StagingEntry records the staged state of a single file. Size and ModTime
// cache the file metadata observed at staging time so status checks can
// skip rehashing unchanged files.
type StagingEntry struct {
	Path     string      `json:"path"`
	BlobHash object.Hash `json:"blob_hash"`
	Mode     string      `json:"mode"`
	Size     int64       `json:"size"`
	ModTime  int64       `json:"mod_time"` // unix nanoseconds
}

// Staging holds the full staging area (index) for a repository, keyed by
// repo-relative slash-separated path.
type Staging struct {
	Entries map[string]*StagingEntry
}

// stagingFile is the on-disk JSON wrapper. Checksum is the xxh3-128 of the
// marshalled entries, so silent corruption of a present index file is
// detected rather than read as truth.
type stagingFile struct {
	Version  int                      `json:"version"`
	Checksum string                   `json:"checksum"`
	Entries  map[string]*StagingEntry `json:"entries"`
}

func (r *Repo) indexPath() string {
	return filepath.Join(r.GitterDir, "index")
}

func entriesChecksum(entries map[string]*StagingEntry) (string, error) {
	// json.Marshal emits map keys sorted, so the checksum input is canonical.
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	sum := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(sum[:]), nil
}

// ReadStaging loads the staging area from .gitter/index. A missing file is
// an empty staging area; a present but unparsable or checksum-mismatched
// file fails with ErrIndexCorrupt.
func (r *Repo) ReadStaging() (*Staging, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Staging{Entries: make(map[string]*StagingEntry)}, nil
		}
		return nil, fmt.Errorf("read staging: %w", err)
	}

	var sf stagingFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("read staging: %w: %w", ErrIndexCorrupt, err)
	}
	if sf.Version != stagingVersion {
		return nil, fmt.Errorf("read staging: %w: unsupported version %d", ErrIndexCorrupt, sf.Version)
	}
	if sf.Entries == nil {
		sf.Entries = make(map[string]*StagingEntry)
	}

	sum, err := entriesChecksum(sf.Entries)
	if err != nil {
		return nil, fmt.Errorf("read staging: checksum: %w", err)
	}
	if sum != sf.Checksum {
		return nil, fmt.Errorf("read staging: %w: checksum mismatch", ErrIndexCorrupt)
	}

	return &Staging{Entries: sf.Entries}, nil
}

// WriteStaging atomically writes the staging area to .gitter/index.
func (r *Repo) WriteStaging(s *Staging) error {
	sum, err := entriesChecksum(s.Entries)
	if err != nil {
		return fmt.Errorf("write staging: checksum: %w", err)
	}
	data, err := json.MarshalIndent(&stagingFile{
		Version:  stagingVersion,
		Checksum: sum,
		Entries:  s.Entries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("write staging: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(r.GitterDir, ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("write staging: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write staging: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write staging: close: %w", err)
	}

	if err := os.Rename(tmpName, r.indexPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write staging: rename: %w", err)
	}
	return nil
}

// Snapshot returns the staged path -> blob hash mapping. The returned map
// is a copy; mutating it does not touch the staging area.
func (s *Staging) Snapshot() map[string]object.Hash {
	snap := make(map[string]object.Hash, len(s.Entries))
	for p, e := range s.Entries {
		snap[p] = e.BlobHash
	}
	return snap
}

// Add stages the given paths. Directories are walked and every non-ignored
// file under them staged. For each file the content is written as a blob
// to the object store (idempotent, so identical content across paths is
// stored once) and the entry is inserted or updated. The staging area is
// flushed once at the end.
func (r *Repo) Add(paths []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	ic := NewIgnoreChecker(r.RootDir)

	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("add: resolve path %q: %w", p, err)
		}

		absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("add: stat %q: %w", relPath, err)
		}

		if info.IsDir() {
			if err := r.addDir(stg, ic, relPath); err != nil {
				return fmt.Errorf("add: %w", err)
			}
			continue
		}

		if err := r.stageFile(stg, relPath); err != nil {
			return fmt.Errorf("add: %w", err)
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	return nil
}

// addDir stages every non-ignored regular file under relDir.
func (r *Repo) addDir(stg *Staging, ic *IgnoreChecker, relDir string) error {
	absDir := filepath.Join(r.RootDir, filepath.FromSlash(relDir))
	return filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if ic.IsIgnored(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		return r.stageFile(stg, rel)
	})
}

// stageFile reads one file, writes its blob, and upserts the entry.
func (r *Repo) stageFile(stg *Staging, relPath string) error {
	if err := ValidatePath(relPath); err != nil {
		return err
	}

	absPath := filepath.Join(r.RootDir, filepath.FromSlash(relPath))
	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read %q: %w", relPath, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat %q: %w", relPath, err)
	}

	blobHash, err := r.Store.WriteBlob(&object.Blob{Data: content})
	if err != nil {
		return fmt.Errorf("write blob %q: %w", relPath, err)
	}

	stg.Entries[relPath] = &StagingEntry{
		Path:     relPath,
		BlobHash: blobHash,
		Mode:     modeFromFileInfo(info),
		Size:     info.Size(),
		ModTime:  info.ModTime().UnixNano(),
	}

	r.log.Debug("staged file",
		zap.String("path", relPath),
		zap.String("blob", string(blobHash)))
	return nil
}

// Remove unstages the given paths. The working-tree files are left alone;
// the engine never mutates the working directory. A path that is not in
// the staging area fails with ErrNotStaged.
func (r *Repo) Remove(paths []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("rm: %w", err)
	}

	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("rm: resolve path %q: %w", p, err)
		}
		if _, ok := stg.Entries[relPath]; !ok {
			return fmt.Errorf("rm %q: %w", relPath, ErrNotStaged)
		}
		delete(stg.Entries, relPath)
		r.log.Debug("unstaged file", zap.String("path", relPath))
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("rm: %w", err)
	}
	return nil
}

// repoRelPath converts a path (absolute, or relative to the CWD) into a
// slash-separated path relative to the repository root. A relative path
// that does not resolve inside the repo is treated as already
// repo-relative.
func (r *Repo) repoRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		return filepath.ToSlash(rel), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	abs := filepath.Join(cwd, p)
	rel, err := filepath.Rel(r.RootDir, abs)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	if len(rel) >= 2 && rel[:2] == ".." {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	return filepath.ToSlash(rel), nil
}
