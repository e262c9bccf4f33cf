package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// FileStore keeps one file per Ref under a root directory:
// <dir>/<extension>/<property><codec extension>. Each file holds the snapshot
// and its Meta.
type FileStore struct {
	fs    afero.Fs
	dir   string
	codec Codec
	now   func() time.Time
	mu    sync.Mutex
}

type fileRecord struct {
	Meta     Meta           `json:"meta" yaml:"meta"`
	Settings map[string]any `json:"settings" yaml:"settings"`
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithCodec selects the file encoding. JSON is the default.
func WithCodec(codec Codec) FileStoreOption {
	return func(s *FileStore) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithClock overrides the clock used for Meta.UpdatedAt.
func WithClock(now func() time.Time) FileStoreOption {
	return func(s *FileStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewFileStore returns a store rooted at dir on fs.
func NewFileStore(fs afero.Fs, dir string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{
		fs:    fs,
		dir:   dir,
		codec: JSONCodec{},
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Path returns the file that backs ref.
func (s *FileStore) Path(ref Ref) (string, error) {
	if _, err := ref.Identifier(); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, ref.Extension, ref.Property+s.codec.Extension()), nil
}

func (s *FileStore) Load(ctx context.Context, ref Ref) (map[string]any, Meta, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, Meta{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok, err := s.read(ref)
	if err != nil || !ok {
		return nil, Meta{}, false, err
	}
	return record.Settings, record.Meta, true, nil
}

func (s *FileStore) Save(ctx context.Context, ref Ref, snapshot map[string]any, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists, err := s.read(ref)
	if err != nil {
		return Meta{}, err
	}
	next, err := nextMeta(ref, current.Meta, exists, snapshot, meta, s.now())
	if err != nil {
		return Meta{}, err
	}
	path, err := s.Path(ref)
	if err != nil {
		return Meta{}, err
	}
	if snapshot == nil {
		snapshot = map[string]any{}
	}
	data, err := s.codec.Marshal(fileRecord{Meta: next, Settings: snapshot})
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode %s: %w", ref, err)
	}
	if err := writeAtomic(s.fs, path, data); err != nil {
		return Meta{}, err
	}
	return cloneMeta(next), nil
}

func (s *FileStore) Delete(ctx context.Context, ref Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(ref)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state: delete %s: %w", ref, err)
	}
	return nil
}

func (s *FileStore) read(ref Ref) (fileRecord, bool, error) {
	path, err := s.Path(ref)
	if err != nil {
		return fileRecord{}, false, err
	}
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return fileRecord{}, false, nil
	}
	if err != nil {
		return fileRecord{}, false, fmt.Errorf("state: read %s: %w", ref, err)
	}
	var record fileRecord
	if err := s.codec.Unmarshal(data, &record); err != nil {
		return fileRecord{}, false, fmt.Errorf("state: decode %s: %w", ref, err)
	}
	settings, err := normalizeSettings(record.Settings)
	if err != nil {
		return fileRecord{}, false, fmt.Errorf("state: decode %s: %w", ref, err)
	}
	record.Settings = settings
	return record, true, nil
}
