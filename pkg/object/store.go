package object

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
)

// ErrNotFound is returned when no object exists under the requested hash.
var ErrNotFound = errors.New("object not found")

// ErrStoreUnavailable wraps I/O failures of the underlying storage.
var ErrStoreUnavailable = errors.New("object store unavailable")

// zstd frame magic, used to recognize compressed objects on read.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

const readCacheSize = 512

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
//
// Objects are hashed over the uncompressed envelope "type len\0content" and
// zstd-compressed on disk; compression is a storage encoding only and never
// affects addressing. Recently read objects are served from an LRU cache.
type Store struct {
	root     string
	compress bool

	enc   *zstd.Encoder
	dec   *zstd.Decoder
	cache *lru.Cache[Hash, []byte] // hash -> uncompressed envelope
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithoutCompression disables zstd encoding of newly written objects.
// Existing compressed objects still read back.
func WithoutCompression() StoreOption {
	return func(s *Store) { s.compress = false }
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write.
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{root: root, compress: true}
	for _, opt := range opts {
		opt(s)
	}
	// These constructors only fail on invalid options; none are passed.
	s.enc, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	s.dec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	s.cache, _ = lru.New[Hash, []byte](readCacheSize)
	return s
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if len(h) != HashLen {
		return false
	}
	if s.cache.Contains(h) {
		return true
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. Writing the same
// content twice is idempotent: the second call returns the same hash
// without touching disk. Writes are atomic: data goes to a temp file that
// is then renamed into place.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	envelope := fmt.Sprintf("%s %d\x00", objType, len(data))
	raw := append([]byte(envelope), data...)

	h := HashObject(objType, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	stored := raw
	if s.compress {
		stored = s.enc.EncodeAll(raw, nil)
	}

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w: %w", ErrStoreUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w: %w", ErrStoreUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(stored); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w: %w", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w: %w", ErrStoreUnavailable, err)
	}

	if err := os.Rename(tmpName, s.objectPath(h)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w: %w", ErrStoreUnavailable, err)
	}

	s.cache.Add(h, raw)
	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
// A missing object yields ErrNotFound; any other storage failure wraps
// ErrStoreUnavailable.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	raw, ok := s.cache.Get(h)
	if !ok {
		if len(h) != HashLen {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		stored, err := os.ReadFile(s.objectPath(h))
		if err != nil {
			if os.IsNotExist(err) {
				return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
			}
			return "", nil, fmt.Errorf("object read %s: %w: %w", h, ErrStoreUnavailable, err)
		}

		raw = stored
		if bytes.HasPrefix(stored, zstdMagic) {
			raw, err = s.dec.DecodeAll(stored, nil)
			if err != nil {
				return "", nil, fmt.Errorf("object read %s: decompress: %w", h, err)
			}
		}
		s.cache.Add(h, raw)
	}

	objType, content, err := parseEnvelope(raw)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	return objType, content, nil
}

// parseEnvelope splits "type len\0content" and validates the length field.
func parseEnvelope(raw []byte) (ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("invalid format (no NUL)")
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("invalid header %q", header)
	}
	objType := ObjectType(parts[0])
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid length %q: %w", parts[1], err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("length mismatch (header=%d, actual=%d)", length, len(content))
	}
	return objType, content, nil
}

// ResolvePrefix expands an abbreviated hash to the full hash of the single
// object it identifies. It returns ErrNotFound when no object matches and
// an error when the prefix is ambiguous.
func (s *Store) ResolvePrefix(prefix string) (Hash, error) {
	if !IsHexHash(prefix) {
		return "", fmt.Errorf("resolve prefix %q: %w", prefix, ErrNotFound)
	}
	if len(prefix) == HashLen {
		h := Hash(prefix)
		if !s.Has(h) {
			return "", fmt.Errorf("resolve prefix %q: %w", prefix, ErrNotFound)
		}
		return h, nil
	}
	if len(prefix) < 4 {
		return "", fmt.Errorf("resolve prefix %q: too short: %w", prefix, ErrNotFound)
	}

	fanout := prefix[:2]
	dir := filepath.Join(s.root, "objects", fanout)
	names, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("resolve prefix %q: %w", prefix, ErrNotFound)
		}
		return "", fmt.Errorf("resolve prefix %q: %w: %w", prefix, ErrStoreUnavailable, err)
	}

	rest := prefix[2:]
	var match Hash
	for _, name := range names {
		if strings.HasPrefix(name.Name(), ".") || !strings.HasPrefix(name.Name(), rest) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("resolve prefix %q: ambiguous", prefix)
		}
		match = Hash(fanout + name.Name())
	}
	if match == "" {
		return "", fmt.Errorf("resolve prefix %q: %w", prefix, ErrNotFound)
	}
	return match, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeBlob {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeBlob)
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeTree {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeTree)
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeCommit {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeCommit)
	}
	return UnmarshalCommit(data)
}
