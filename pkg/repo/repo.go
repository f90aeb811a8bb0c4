package repo

import (
	"go.uber.org/zap"

	"github.com/gitterhq/gitter/pkg/object"
)

// Repo represents an opened gitter repository.
type Repo struct {
	RootDir   string        // working directory root
	GitterDir string        // .gitter/ directory
	Store     *object.Store // content-addressed object store

	log *zap.Logger
}

// Option configures a Repo on Init or Open.
type Option func(*Repo)

// WithLogger attaches a logger. Without it, diagnostics are discarded.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repo) {
		if l != nil {
			r.log = l
		}
	}
}

func (r *Repo) applyOptions(opts []Option) {
	r.log = zap.NewNop()
	for _, opt := range opts {
		opt(r)
	}
}
