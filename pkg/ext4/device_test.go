package ext4

import (
	"os"
	"testing"
)

func newTestDevice(t *testing.T, contents []byte) *Device {
	t.Helper()
	f, err := os.CreateTemp("", "ext4reader-device-test-")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	t.Cleanup(func() {
		f.Close()
		os.Remove(f.Name())
	})
	if _, err := f.Write(contents); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}

	dev, err := OpenDevice(f.Name())
	if err != nil {
		t.Fatalf("OpenDevice: %v", err)
	}
	t.Cleanup(func() { dev.Close() })
	return dev
}

func TestOpenDeviceReportsSize(t *testing.T) {
	dev := newTestDevice(t, make([]byte, 4096))
	if dev.Size() != 4096 {
		t.Errorf("got size %d, want 4096", dev.Size())
	}
}

func TestOpenDeviceMissingFile(t *testing.T) {
	_, err := OpenDevice("/nonexistent/path/does-not-exist")
	if err == nil {
		t.Fatal("expected an error opening a missing device")
	}
	var e *Error
	if !isExtError(err, &e) || e.Kind != KindIO {
		t.Fatalf("got %v, want KindIO", err)
	}
}

func TestDeviceReadAtReturnsRequestedSlice(t *testing.T) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i)
	}
	dev := newTestDevice(t, data)

	got, err := dev.ReadAt(10, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := data[10:30]
	if string(got) != string(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDeviceReadAtPastEndIsRange(t *testing.T) {
	dev := newTestDevice(t, make([]byte, 100))

	_, err := dev.ReadAt(90, 50)
	if err == nil {
		t.Fatal("expected KindRange for a read past the device end")
	}
	var e *Error
	if !isExtError(err, &e) || e.Kind != KindRange {
		t.Fatalf("got %v, want KindRange", err)
	}
}

func TestDeviceReadAtNegativeIsArgument(t *testing.T) {
	dev := newTestDevice(t, make([]byte, 100))

	if _, err := dev.ReadAt(-1, 10); err == nil {
		t.Fatal("expected KindArgument for a negative offset")
	} else {
		var e *Error
		if !isExtError(err, &e) || e.Kind != KindArgument {
			t.Fatalf("got %v, want KindArgument", err)
		}
	}

	if _, err := dev.ReadAt(0, -1); err == nil {
		t.Fatal("expected KindArgument for a negative length")
	} else {
		var e *Error
		if !isExtError(err, &e) || e.Kind != KindArgument {
			t.Fatalf("got %v, want KindArgument", err)
		}
	}
}

func TestDeviceReadAtZeroLength(t *testing.T) {
	dev := newTestDevice(t, make([]byte, 100))

	got, err := dev.ReadAt(0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d bytes, want 0", len(got))
	}
}
