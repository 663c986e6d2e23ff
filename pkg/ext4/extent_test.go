package ext4

import (
	"encoding/binary"
	"testing"
)

func makeExtentRoot(depth uint16, entries []Extent) []byte {
	buf := make([]byte, 60)
	binary.LittleEndian.PutUint16(buf[0:2], extentMagic)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(entries)))
	binary.LittleEndian.PutUint16(buf[4:6], 4)
	binary.LittleEndian.PutUint16(buf[6:8], depth)

	for i, e := range entries {
		off := extentEntrySize + i*extentEntrySize
		binary.LittleEndian.PutUint32(buf[off:off+4], e.Block)
		binary.LittleEndian.PutUint16(buf[off+4:off+6], e.Len)
		binary.LittleEndian.PutUint16(buf[off+6:off+8], e.StartHi)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], e.StartLo)
	}
	return buf
}

func TestExtentLeavesDecodesLeafRuns(t *testing.T) {
	root := makeExtentRoot(0, []Extent{
		{Block: 0, Len: 4, StartLo: 1000},
		{Block: 4, Len: 2, StartLo: 2000},
	})

	leaves, err := ExtentLeaves(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leaves) != 2 {
		t.Fatalf("got %d leaves, want 2", len(leaves))
	}
	if leaves[0].PhysicalStart() != 1000 || leaves[0].BlockCount() != 4 {
		t.Errorf("leaf 0 = %+v, want start 1000 count 4", leaves[0])
	}
	if leaves[1].PhysicalStart() != 2000 || leaves[1].BlockCount() != 2 {
		t.Errorf("leaf 1 = %+v, want start 2000 count 2", leaves[1])
	}
}

func TestExtentLeavesRejectsBadMagic(t *testing.T) {
	root := make([]byte, 60)
	if _, err := ExtentLeaves(root); err == nil {
		t.Fatal("expected error for a zeroed (bad-magic) extent header")
	}
}

func TestExtentLeavesRejectsDepthAboveZero(t *testing.T) {
	root := makeExtentRoot(1, nil)
	_, err := ExtentLeaves(root)
	if err == nil {
		t.Fatal("expected KindUnsupported for extent tree depth > 0")
	}
	var e *Error
	if !isExtError(err, &e) || e.Kind != KindUnsupported {
		t.Fatalf("got error %v, want KindUnsupported", err)
	}
}

func TestExtentLeavesRejectsUninitializedExtent(t *testing.T) {
	root := makeExtentRoot(0, []Extent{{Block: 0, Len: 32769, StartLo: 1000}})
	_, err := ExtentLeaves(root)
	if err == nil {
		t.Fatal("expected KindUnsupported for an uninitialized extent")
	}
	var e *Error
	if !isExtError(err, &e) || e.Kind != KindUnsupported {
		t.Fatalf("got error %v, want KindUnsupported", err)
	}
}

// isExtError is a tiny errors.As shim shared by this file's tests; it
// avoids importing the "errors" package in every _test.go file that
// only needs this one assertion.
func isExtError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
