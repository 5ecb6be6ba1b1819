// Package shmem manages the named, file-backed memory region shared between
// the driver process and the capture consumer. The region lives under
// /dev/shm where available so the mapping is memory-only, and under the
// system temp directory otherwise so an unprivileged consumer can still open
// it by name.
package shmem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultRegionName is the fixed name both sides agree on. The consumer has
// no other channel to discover the region.
const DefaultRegionName = "audiotap.ring"

// ErrResource reports that the region could not be created, sized or mapped.
var ErrResource = errors.New("shared region resource failure")

// Region is one mapped shared-memory segment. The mapping is advisory: the
// producer may unlink the name at any time, and an already-mapped consumer
// keeps a valid (if frozen) view until it closes.
type Region struct {
	name string
	path string
	size int

	closeOnce sync.Once
	data      []byte
}

// Dir returns the directory regions are placed in.
func Dir() string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// Path returns the filesystem path backing a region name.
func Path(name string) string {
	return filepath.Join(Dir(), name)
}

// Available reports whether a region with the given name currently exists,
// without mapping it.
func Available(name string) bool {
	fi, err := os.Stat(Path(name))
	return err == nil && fi.Mode().IsRegular()
}

// Create builds a region of the given size, replacing any stale file left by
// a previous producer. The returned region is mapped read-write and zeroed.
func Create(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: non-positive size %d", ErrResource, size)
	}
	path := Path(name)

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrResource, path, err)
	}
	defer unix.Close(fd)

	// Truncate in both directions so a stale region from a previous run
	// cannot leak old cursors into this one.
	if err := unix.Ftruncate(fd, 0); err != nil {
		return nil, fmt.Errorf("%w: truncate %s: %v", ErrResource, path, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, fmt.Errorf("%w: size %s to %d: %v", ErrResource, path, size, err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: map %s: %v", ErrResource, path, err)
	}

	return &Region{name: name, path: path, size: size, data: data}, nil
}

// Open maps an existing region read-write. The consumer writes too: it owns
// the read cursor in the region header.
func Open(name string) (*Region, error) {
	path := Path(name)

	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrResource, path, err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrResource, path, err)
	}
	size := int(st.Size)
	if size <= 0 {
		return nil, fmt.Errorf("%w: region %s is empty", ErrResource, path)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: map %s: %v", ErrResource, path, err)
	}

	return &Region{name: name, path: path, size: size, data: data}, nil
}

// Bytes returns the mapped view. The slice is invalid after Close.
func (r *Region) Bytes() []byte { return r.data }

// Name returns the region name shared with the other process.
func (r *Region) Name() string { return r.name }

// Size returns the mapped length in bytes.
func (r *Region) Size() int { return r.size }

// Close unmaps the region. Safe to call more than once.
func (r *Region) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.data != nil {
			err = unix.Munmap(r.data)
			r.data = nil
		}
	})
	return err
}

// Unlink removes the region name so no new consumer can attach. Existing
// mappings stay valid until their owners close them. Idempotent.
func (r *Region) Unlink() error {
	err := os.Remove(r.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
