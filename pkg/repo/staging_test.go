package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return r
}

func writeWorkFile(t *testing.T, r *Repo, rel, content string) {
	t.Helper()
	abs := filepath.Join(r.RootDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestReadStaging_Missing(t *testing.T) {
	r := newTestRepo(t)

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging on fresh repo: %v", err)
	}
	if len(stg.Entries) != 0 {
		t.Errorf("fresh staging has %d entries, want 0", len(stg.Entries))
	}
}

func TestAdd_PersistsAcrossReload(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "a.txt", "alpha\n")
	writeWorkFile(t, r, "sub/b.txt", "beta\n")

	if err := r.Add([]string{"a.txt", "sub/b.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reopened, err := Open(r.RootDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	stg, err := reopened.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging after reload: %v", err)
	}
	if len(stg.Entries) != 2 {
		t.Fatalf("staging has %d entries, want 2", len(stg.Entries))
	}
	for _, p := range []string{"a.txt", "sub/b.txt"} {
		e, ok := stg.Entries[p]
		if !ok {
			t.Fatalf("entry for %q missing", p)
		}
		if e.BlobHash == "" || e.Mode == "" {
			t.Errorf("entry %q incomplete: %+v", p, e)
		}
	}
}

// Identical content under different paths is a single blob on disk.
func TestAdd_DeduplicatesContent(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "one.txt", "same content\n")
	writeWorkFile(t, r, "two.txt", "same content\n")

	if err := r.Add([]string{"one.txt", "two.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	if stg.Entries["one.txt"].BlobHash != stg.Entries["two.txt"].BlobHash {
		t.Errorf("equal content staged under different blob hashes")
	}

	n := 0
	objDir := filepath.Join(r.GitterDir, "objects")
	err = filepath.Walk(objDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk objects: %v", err)
	}
	if n != 1 {
		t.Errorf("object store holds %d files, want 1", n)
	}
}

func TestAdd_Directory(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "src/main.go", "package main\n")
	writeWorkFile(t, r, "src/util/helper.go", "package util\n")
	writeWorkFile(t, r, "unrelated.txt", "x\n")

	if err := r.Add([]string{"src"}); err != nil {
		t.Fatalf("Add dir: %v", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	if _, ok := stg.Entries["src/main.go"]; !ok {
		t.Errorf("src/main.go not staged")
	}
	if _, ok := stg.Entries["src/util/helper.go"]; !ok {
		t.Errorf("src/util/helper.go not staged")
	}
	if _, ok := stg.Entries["unrelated.txt"]; ok {
		t.Errorf("unrelated.txt staged by directory add")
	}
}

func TestAdd_RestageUpdatesEntry(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "f.txt", "v1\n")
	if err := r.Add([]string{"f.txt"}); err != nil {
		t.Fatalf("Add v1: %v", err)
	}
	stg, _ := r.ReadStaging()
	first := stg.Entries["f.txt"].BlobHash

	writeWorkFile(t, r, "f.txt", "v2\n")
	if err := r.Add([]string{"f.txt"}); err != nil {
		t.Fatalf("Add v2: %v", err)
	}
	stg, _ = r.ReadStaging()
	if len(stg.Entries) != 1 {
		t.Fatalf("staging has %d entries, want 1", len(stg.Entries))
	}
	if stg.Entries["f.txt"].BlobHash == first {
		t.Errorf("restage did not update blob hash")
	}
}

func TestRemove_Unstages(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "f.txt", "data\n")
	if err := r.Add([]string{"f.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := r.Remove([]string{"f.txt"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	if len(stg.Entries) != 0 {
		t.Errorf("staging has %d entries after rm, want 0", len(stg.Entries))
	}

	// The working-tree file is untouched.
	if _, err := os.Stat(filepath.Join(r.RootDir, "f.txt")); err != nil {
		t.Errorf("working tree file removed by rm: %v", err)
	}
}

func TestRemove_NotStaged(t *testing.T) {
	r := newTestRepo(t)
	err := r.Remove([]string{"missing.txt"})
	if !errors.Is(err, ErrNotStaged) {
		t.Fatalf("Remove unstaged: err = %v, want ErrNotStaged", err)
	}
}

func TestReadStaging_Corrupt(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "f.txt", "data\n")
	if err := r.Add([]string{"f.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Flip bytes in the index file so the checksum no longer matches.
	idx := filepath.Join(r.GitterDir, "index")
	data, err := os.ReadFile(idx)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	tampered := []byte(string(data))
	for i := range tampered {
		if tampered[i] == 'f' {
			tampered[i] = 'g'
			break
		}
	}
	if err := os.WriteFile(idx, tampered, 0o644); err != nil {
		t.Fatalf("tamper index: %v", err)
	}

	if _, err := r.ReadStaging(); !errors.Is(err, ErrIndexCorrupt) {
		t.Fatalf("tampered index: err = %v, want ErrIndexCorrupt", err)
	}

	// Unparsable JSON is also corruption, not an empty index.
	if err := os.WriteFile(idx, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write garbage index: %v", err)
	}
	if _, err := r.ReadStaging(); !errors.Is(err, ErrIndexCorrupt) {
		t.Fatalf("garbage index: err = %v, want ErrIndexCorrupt", err)
	}
}

func TestAdd_IgnoredFilesSkipped(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, ".gitterignore", "*.log\n")
	writeWorkFile(t, r, "keep.txt", "keep\n")
	writeWorkFile(t, r, "noise.log", "noise\n")

	if err := r.Add([]string{"."}); err != nil {
		t.Fatalf("Add .: %v", err)
	}

	stg, err := r.ReadStaging()
	if err != nil {
		t.Fatalf("ReadStaging: %v", err)
	}
	if _, ok := stg.Entries["keep.txt"]; !ok {
		t.Errorf("keep.txt not staged")
	}
	if _, ok := stg.Entries["noise.log"]; ok {
		t.Errorf("ignored noise.log was staged")
	}
}
