package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gitterhq/gitter/pkg/object"
)

func TestConfig_Defaults(t *testing.T) {
	r := newTestRepo(t)

	cfg, err := r.ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if !cfg.Core.Compression {
		t.Errorf("default compression disabled")
	}
	if cfg.User.Name != "" || cfg.User.Email != "" {
		t.Errorf("default identity not empty: %+v", cfg.User)
	}
}

func TestConfig_RoundTrip(t *testing.T) {
	r := newTestRepo(t)

	want := &Config{
		User: UserConfig{Name: "Ada Lovelace", Email: "ada@example.com"},
		Core: CoreConfig{Compression: false},
	}
	if err := r.WriteConfig(want); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	got, err := r.ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if got.User != want.User || got.Core != want.Core {
		t.Errorf("config = %+v, want %+v", got, want)
	}
}

func TestIdentity(t *testing.T) {
	r := newTestRepo(t)

	if id := r.Identity(); id != "unknown <unknown@localhost>" {
		t.Errorf("unconfigured identity = %q", id)
	}

	if err := r.WriteConfig(&Config{
		User: UserConfig{Name: "Ada Lovelace", Email: "ada@example.com"},
		Core: CoreConfig{Compression: true},
	}); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	if id := r.Identity(); id != "Ada Lovelace <ada@example.com>" {
		t.Errorf("identity = %q", id)
	}

	if err := r.WriteConfig(&Config{
		User: UserConfig{Name: "Ada Lovelace"},
		Core: CoreConfig{Compression: true},
	}); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	if id := r.Identity(); id != "Ada Lovelace" {
		t.Errorf("email-less identity = %q", id)
	}
}

// Disabling compression in config carries through to reopened stores, and
// objects written either way still read back.
func TestConfig_CompressionToggle(t *testing.T) {
	r := newTestRepo(t)
	h1 := commitFile(t, r, "a.txt", "compressed era\n", "one")

	cfg, err := r.ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	cfg.Core.Compression = false
	if err := r.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}

	reopened, err := Open(r.RootDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	writeWorkFile(t, reopened, "b.txt", "plain era\n")
	if err := reopened.Add([]string{"b.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	h2, err := reopened.Commit("two", testAuthor)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	for _, h := range []object.Hash{h1, h2} {
		if _, err := reopened.Store.ReadCommit(h); err != nil {
			t.Errorf("read commit %s: %v", h, err)
		}
	}
}

func TestInit_ExistingRepo(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := Init(dir); err == nil {
		t.Fatalf("double init succeeded")
	}
}

func TestOpen_FromSubdirectory(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	found, err := Open(sub)
	if err != nil {
		t.Fatalf("Open from subdir: %v", err)
	}
	if found.RootDir != r.RootDir {
		t.Errorf("root = %q, want %q", found.RootDir, r.RootDir)
	}
}

func TestOpen_NotARepo(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatalf("Open outside a repository succeeded")
	}
}

func TestHead_Symbolic(t *testing.T) {
	r := newTestRepo(t)
	head, err := r.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head != DefaultBranchRef {
		t.Errorf("fresh HEAD = %q, want %q", head, DefaultBranchRef)
	}
}
