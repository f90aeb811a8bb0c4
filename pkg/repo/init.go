package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/gitterhq/gitter/pkg/object"
)

// MetaDirName is the repository metadata directory created at the root.
const MetaDirName = ".gitter"

// DefaultBranchRef is the ref HEAD points at in a fresh repository.
const DefaultBranchRef = "refs/heads/main"

// Init creates a new gitter repository at path: the .gitter/ directory
// with objects/, refs/heads/, and a symbolic HEAD. Returns an error if a
// .gitter/ directory already exists.
func Init(path string, opts ...Option) (*Repo, error) {
	metaDir := filepath.Join(path, MetaDirName)

	if _, err := os.Stat(metaDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", metaDir)
	}

	dirs := []string{
		filepath.Join(metaDir, "objects"),
		filepath.Join(metaDir, "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(metaDir, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: "+DefaultBranchRef+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	r := newRepo(path, metaDir, opts)
	r.log.Info("initialized repository", zap.String("dir", metaDir))
	return r, nil
}

// Open searches upward from path for a .gitter/ directory and opens the
// repository. Returns an error if none is found.
func Open(path string, opts ...Option) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		metaDir := filepath.Join(cur, MetaDirName)
		info, err := os.Stat(metaDir)
		if err == nil && info.IsDir() {
			return newRepo(cur, metaDir, opts), nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a gitter repository (or any parent up to /)")
		}
		cur = parent
	}
}

func newRepo(root, metaDir string, opts []Option) *Repo {
	r := &Repo{
		RootDir:   root,
		GitterDir: metaDir,
	}
	r.applyOptions(opts)

	var storeOpts []object.StoreOption
	if cfg, err := r.ReadConfig(); err == nil && !cfg.Core.Compression {
		storeOpts = append(storeOpts, object.WithoutCompression())
	}
	r.Store = object.NewStore(metaDir, storeOpts...)
	return r
}

// Head reads .gitter/HEAD. For a symbolic HEAD ("ref: refs/heads/main") it
// returns the ref path; otherwise the raw content as a detached hash.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.GitterDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")

	if strings.HasPrefix(content, "ref: ") {
		return strings.TrimPrefix(content, "ref: "), nil
	}
	return content, nil
}
