// Package blockdev simulates a fixed-size block device as a contiguous
// in-memory byte buffer. It performs bounded reads and writes and nothing
// else: callers are responsible for any concurrency control, which in this
// simulator is provided by disjoint per-AG locking (pkg/alloc) rather than
// by the device itself.
package blockdev

import "github.com/pkg/errors"

// ErrOutOfBounds is returned when offset+len would run past the end of the
// device.
var ErrOutOfBounds = errors.New("blockdev: out of bounds")

// ErrNotInitialized is returned by Read/Write when the device has
// no backing buffer.
var ErrNotInitialized = errors.New("blockdev: not initialized")

// Device is a simulated block device backed by a byte slice.
type Device struct {
	buf []byte
}

// New returns an uninitialized Device. Init must be called before use.
func New() *Device {
	return &Device{}
}

// Init allocates a zero-filled buffer of exactly size bytes, replacing any
// existing buffer.
func (d *Device) Init(size int64) error {
	if size <= 0 {
		return errors.New("blockdev: size must be positive")
	}
	d.buf = make([]byte, size)
	return nil
}

// Size returns the device's total byte size, or 0 if uninitialized.
func (d *Device) Size() int64 {
	return int64(len(d.buf))
}

// Read copies len(p) bytes from offset into p.
func (d *Device) Read(offset int64, p []byte) error {
	if d.buf == nil {
		return ErrNotInitialized
	}
	if offset < 0 || offset+int64(len(p)) > int64(len(d.buf)) {
		return ErrOutOfBounds
	}
	copy(p, d.buf[offset:offset+int64(len(p))])
	return nil
}

// Write copies p into the device starting at offset.
func (d *Device) Write(offset int64, p []byte) error {
	if d.buf == nil {
		return ErrNotInitialized
	}
	if offset < 0 || offset+int64(len(p)) > int64(len(d.buf)) {
		return ErrOutOfBounds
	}
	copy(d.buf[offset:offset+int64(len(p))], p)
	return nil
}

// Destroy releases the backing buffer.
func (d *Device) Destroy() {
	d.buf = nil
}
