// ABOUTME: Filesystem snapshot store, one directory per device
// ABOUTME: Publishes via temp file + hard link so readers never see partial captures

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// FileExt is the extension of published snapshot files
	FileExt = ".txt"

	tempPrefix = ".tmp-"
)

// FSStore keeps snapshots as {root}/{device}/{key}.txt.
type FSStore struct {
	root  string
	clock Clock
	locks DeviceLocks
}

// NewFSStore opens (creating if needed) a filesystem store rooted at root.
func NewFSStore(root string, clock Clock) (*FSStore, error) {
	if clock == nil {
		clock = SystemClock
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FSStore{root: root, clock: clock}, nil
}

// Root returns the store's root directory.
func (s *FSStore) Root() string {
	return s.root
}

// Path returns the file holding ref.
func (s *FSStore) Path(ref Ref) string {
	return filepath.Join(s.root, ref.DeviceID, ref.Key()+FileExt)
}

// Save stores config as a new snapshot.
func (s *FSStore) Save(ctx context.Context, deviceID, config string) (*Snapshot, error) {
	if err := ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}
	now := s.clock.Now()

	unlock := s.locks.Lock(deviceID)
	defer unlock()

	dir := filepath.Join(s.root, deviceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageWriteError{DeviceID: deviceID, Op: "create namespace", Err: err}
	}

	history, err := s.list(deviceID)
	if err != nil {
		return nil, &StorageWriteError{DeviceID: deviceID, Op: "read history", Err: err}
	}

	ref, err := NextRef(deviceID, now, history)
	if err != nil {
		return nil, &StorageWriteError{DeviceID: deviceID, Op: "allocate key", Err: err}
	}

	tmpName, err := writeTemp(dir, config)
	if err != nil {
		return nil, &StorageWriteError{DeviceID: deviceID, Op: "write", Err: err}
	}
	defer os.Remove(tmpName)

	if err := ctx.Err(); err != nil {
		return nil, &StorageWriteError{DeviceID: deviceID, Op: "publish", Err: err}
	}

	// Link fails instead of replacing an existing file, so a key taken by
	// another process bumps the sequence rather than overwriting.
	for {
		err = os.Link(tmpName, s.Path(ref))
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, &StorageWriteError{DeviceID: deviceID, Op: "publish", Err: err}
		}
		ref.Seq++
		if ref.Seq > MaxSeq {
			return nil, &StorageWriteError{DeviceID: deviceID, Op: "allocate key", Err: err}
		}
	}

	// The snapshot is already visible; directory fsync only hardens it.
	_ = syncDir(dir)

	return &Snapshot{Ref: ref, Config: config}, nil
}

// List returns the device's snapshots, read from disk on every call.
func (s *FSStore) List(ctx context.Context, deviceID string) ([]Ref, error) {
	if err := ValidateDeviceID(deviceID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.list(deviceID)
}

func (s *FSStore) list(deviceID string) ([]Ref, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, deviceID))
	if errors.Is(err, fs.ErrNotExist) {
		return []Ref{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", deviceID, err)
	}

	refs := make([]Ref, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, FileExt) {
			continue
		}
		ref, err := ParseKey(deviceID, strings.TrimSuffix(name, FileExt))
		if err != nil {
			// Foreign file in the namespace
			continue
		}
		refs = append(refs, ref)
	}

	SortRefs(refs)
	return refs, nil
}

// Load reads a snapshot's configuration text.
func (s *FSStore) Load(ctx context.Context, ref Ref) (string, error) {
	if err := ValidateDeviceID(ref.DeviceID); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.Path(ref))
	if errors.Is(err, fs.ErrNotExist) {
		return "", &NotFoundError{Ref: ref}
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", ref.Key(), err)
	}
	return string(data), nil
}

// Exists stats the snapshot's file.
func (s *FSStore) Exists(ctx context.Context, ref Ref) (bool, error) {
	if err := ValidateDeviceID(ref.DeviceID); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(ref))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", ref.Key(), err)
	}
	return true, nil
}

// writeTemp writes data to a fsynced temp file in dir and returns its name.
func writeTemp(dir, data string) (string, error) {
	f, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", err
	}
	name := f.Name()

	if _, err := f.WriteString(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

// syncDir fsyncs a directory so a new entry survives a crash
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
