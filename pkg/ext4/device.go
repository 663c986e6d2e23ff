package ext4

import (
	"fmt"
	"os"
)

// Device is a random-access byte source: a raw disk image or block
// device opened read-only. It exposes a single positional-read
// operation; nothing in this package ever seeks a shared cursor, so
// a Device may safely back more than one concurrent read so long as
// the underlying os.File supports ReadAt (all regular files and
// block devices do).
type Device struct {
	f    *os.File
	size int64
}

// OpenDevice opens path read-only and stats its size for bounds
// checking. The caller must Close the returned Device.
func OpenDevice(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, wrapErr(KindIO, err, "opening device %s", path)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, wrapErr(KindIO, err, "statting device %s", path)
	}

	return &Device{f: f, size: fi.Size()}, nil
}

// Close releases the underlying file handle.
func (d *Device) Close() error {
	return d.f.Close()
}

// Size returns the device's total byte length, as reported by stat
// when the device was opened.
func (d *Device) Size() int64 {
	return d.size
}

// ReadAt reads exactly length bytes starting at offset. It fails with
// KindRange if the requested span would run past the device's end,
// and with KindIO for any underlying read failure.
func (d *Device) ReadAt(offset int64, length int) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, newErr(KindArgument, "negative offset or length")
	}
	if d.size >= 0 && offset+int64(length) > d.size {
		return nil, newErr(KindRange, "read of %d bytes at offset %d exceeds device size %d", length, offset, d.size)
	}

	buf := make([]byte, length)
	n, err := d.f.ReadAt(buf, offset)
	if err != nil && n < length {
		return nil, wrapErr(KindIO, err, "reading %d bytes at offset %d", length, offset)
	}
	return buf, nil
}

// String implements fmt.Stringer for diagnostic logging.
func (d *Device) String() string {
	return fmt.Sprintf("device(size=%d)", d.size)
}
