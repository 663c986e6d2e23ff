package ext4

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func packInode(extraIsize uint16, inodeSize uint16) []byte {
	buf := make([]byte, inodeSize)
	binary.LittleEndian.PutUint16(buf[0x00:], ModeRegular|0644)
	binary.LittleEndian.PutUint32(buf[0x04:], 12345) // SizeLo
	binary.LittleEndian.PutUint16(buf[0x1A:], 1)      // LinksCount
	if inodeSize > InodeBaseSize {
		binary.LittleEndian.PutUint16(buf[InodeBaseSize:], extraIsize)
	}
	return buf
}

func TestDecodeInodeRejectsShortBuffer(t *testing.T) {
	if _, err := DecodeInode(make([]byte, 10), 128, 1); err == nil {
		t.Fatal("expected an error for a buffer shorter than size")
	}
}

func TestDecodeInodeRejectsUndersizedBase(t *testing.T) {
	if _, err := DecodeInode(make([]byte, 100), 100, 1); err == nil {
		t.Fatal("expected an error for size below InodeBaseSize")
	}
}

func TestDecodeInodeBaseFields(t *testing.T) {
	buf := packInode(0, InodeBaseSize)
	ino, err := DecodeInode(buf, InodeBaseSize, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ino.SizeLo != 12345 || ino.LinksCount != 1 || !ino.IsRegularFile() {
		t.Errorf("decoded %+v", ino)
	}
	if ino.ExtraIsize != 0 {
		t.Errorf("expected no extension region when size == InodeBaseSize, got ExtraIsize %d", ino.ExtraIsize)
	}
}

func TestDecodeInodeExtensionStopsAtExtraIsize(t *testing.T) {
	const inodeSize = InodeBaseSize + 0x20 // room for every named extra field
	buf := packInode(0x08, inodeSize)      // only covers up to cTimeExtraField (offset 0x04, width 4 -> needs 8)
	binary.LittleEndian.PutUint32(buf[InodeBaseSize+0x04:], 0xAAAAAAAA) // CTimeExtra
	binary.LittleEndian.PutUint32(buf[InodeBaseSize+0x0C:], 0xBBBBBBBB) // ATimeExtra, beyond ExtraIsize

	ino, err := DecodeInode(buf, inodeSize, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ino.CTimeExtra != 0xAAAAAAAA {
		t.Errorf("expected CTimeExtra to be decoded (covered by ExtraIsize=8), got 0x%x", ino.CTimeExtra)
	}
	if ino.ATimeExtra != 0 {
		t.Errorf("expected ATimeExtra to stay zero (ExtraIsize=8 doesn't reach it), got 0x%x", ino.ATimeExtra)
	}
}

func TestDecodeInodeExtensionAllFields(t *testing.T) {
	const inodeSize = InodeBaseSize + 0x20
	buf := packInode(0x20, inodeSize)
	binary.LittleEndian.PutUint16(buf[InodeBaseSize+0x02:], 0x1234) // ChecksumHi
	binary.LittleEndian.PutUint32(buf[InodeBaseSize+0x1C:], 777)    // ProjID

	ino, err := DecodeInode(buf, inodeSize, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ino.ChecksumHi != 0x1234 || ino.ProjID != 777 {
		t.Errorf("decoded extension %+v", ino)
	}
	if !ino.HasChecksumHi() {
		t.Error("expected HasChecksumHi to be true once ExtraIsize > 2")
	}
}

func TestInodeTypePredicates(t *testing.T) {
	cases := []struct {
		mode uint16
		want func(*Inode) bool
	}{
		{ModeRegular, (*Inode).IsRegularFile},
		{ModeDir, (*Inode).IsDirectory},
		{ModeSymlink, (*Inode).IsSymlink},
		{ModeFIFO, (*Inode).IsFIFO},
		{ModeCharDev, (*Inode).IsCharDevice},
		{ModeBlockDev, (*Inode).IsBlockDevice},
		{ModeSocket, (*Inode).IsSocket},
	}
	for _, c := range cases {
		ino := &Inode{Mode: c.mode}
		if !c.want(ino) {
			t.Errorf("predicate false for mode %#x", c.mode)
		}
	}
}

func TestInodeSizeAssemblesHighLow(t *testing.T) {
	ino := &Inode{SizeLo: 0xFFFFFFFF, SizeHigh: 1}
	want := uint64(1)<<32 | 0xFFFFFFFF
	if ino.Size() != want {
		t.Errorf("got %d, want %d", ino.Size(), want)
	}
}

func TestInodeHasExtentsRequiresBothFlagAndFeature(t *testing.T) {
	sbWith := &Superblock{FeatureIncompat: IncompatExtents}
	sbWithout := &Superblock{}

	ino := &Inode{Flags: InodeFlagExtents}
	if !ino.HasExtents(sbWith) {
		t.Error("expected HasExtents true when both feature and flag are set")
	}
	if ino.HasExtents(sbWithout) {
		t.Error("expected HasExtents false without the filesystem feature")
	}

	plain := &Inode{}
	if plain.HasExtents(sbWith) {
		t.Error("expected HasExtents false without the per-inode flag")
	}
}

func TestInodeFlagPredicates(t *testing.T) {
	ino := &Inode{Flags: InodeFlagInlineData | InodeFlagIndex | InodeFlagHugeFile}
	if !ino.HasInlineData() || !ino.HasIndex() || !ino.HasHugeFile() {
		t.Errorf("expected all three flag predicates true, got %+v", ino)
	}
}

// verifiedInode builds an inode whose raw bytes and ChecksumLo/Hi are
// consistent with the CRC-32C algorithm VerifyChecksum implements, so
// tests can corrupt a single byte and expect exactly one failure mode.
func verifiedInode(t *testing.T, sb *Superblock, seed uint32, number uint32) *Inode {
	t.Helper()
	const inodeSize = InodeBaseSize + 0x20
	buf := make([]byte, inodeSize)
	binary.LittleEndian.PutUint16(buf[0x00:], ModeRegular|0644)
	binary.LittleEndian.PutUint32(buf[InodeBaseSize:], 0x20) // ExtraIsize

	ino, err := DecodeInode(buf, inodeSize, number)
	if err != nil {
		t.Fatalf("decoding scaffold inode: %v", err)
	}

	hasLo := sb.CreatorOS == CreatorOSLinux
	hasHi := ino.HasChecksumHi()

	var numBuf, genBuf [4]byte
	binary.LittleEndian.PutUint32(numBuf[:], ino.number)
	binary.LittleEndian.PutUint32(genBuf[:], ino.Generation)

	crc := CRC32C(seed, numBuf[:])
	crc = CRC32C(crc, genBuf[:])
	crc = CRC32C(crc, ino.raw[:inodeChecksumLoOffset])
	if hasLo {
		crc = CRC32C(crc, []byte{0, 0})
	} else {
		crc = CRC32C(crc, ino.raw[inodeChecksumLoOffset:inodeChecksumLoOffset+2])
	}
	crc = CRC32C(crc, ino.raw[inodeChecksumLoOffset+2:inodeChecksumHiOffset])
	if hasHi {
		crc = CRC32C(crc, []byte{0, 0})
	} else if len(ino.raw) >= inodeChecksumHiOffset+2 {
		crc = CRC32C(crc, ino.raw[inodeChecksumHiOffset:inodeChecksumHiOffset+2])
	}
	total := InodeBaseSize + int(ino.ExtraIsize)
	if total > inodeChecksumHiOffset+2 && total <= len(ino.raw) {
		crc = CRC32C(crc, ino.raw[inodeChecksumHiOffset+2:total])
	}
	if total < len(ino.raw) {
		crc = CRC32C(crc, ino.raw[total:])
	}

	if hasLo {
		ino.ChecksumLo = uint16(crc)
	}
	if hasHi {
		ino.ChecksumHi = uint16(crc >> 16)
	}
	return ino
}

func TestInodeVerifyChecksumMatches(t *testing.T) {
	sb := &Superblock{FeatureROCompat: ROCompatMetadataCsum}
	ino := verifiedInode(t, sb, 0xDEADBEEF, 42)
	if err := ino.VerifyChecksum(sb, 0xDEADBEEF); err != nil {
		t.Fatalf("expected checksum to match, got %v", err)
	}
}

func TestInodeVerifyChecksumDetectsCorruption(t *testing.T) {
	sb := &Superblock{FeatureROCompat: ROCompatMetadataCsum}
	ino := verifiedInode(t, sb, 0xDEADBEEF, 42)
	ino.SizeLo ^= 0xFF
	ino.raw[4] ^= 0xFF

	err := ino.VerifyChecksum(sb, 0xDEADBEEF)
	if err == nil {
		t.Fatal("expected a checksum mismatch after corrupting the inode")
	}
	var e *Error
	if !isExtError(err, &e) || e.Kind != KindCorruption {
		t.Fatalf("got %v, want KindCorruption", err)
	}
}

func TestInodeVerifyChecksumSkippedWithoutFeature(t *testing.T) {
	sb := &Superblock{}
	ino := &Inode{}
	if err := ino.VerifyChecksum(sb, 0); err != nil {
		t.Fatalf("expected no verification without METADATA_CSUM, got %v", err)
	}
}

func TestInodeBlockBytesRoundTrip(t *testing.T) {
	ino := &Inode{}
	for i := range ino.Block {
		ino.Block[i] = uint32(i + 1)
	}
	raw := ino.blockBytes()
	if len(raw) != 60 {
		t.Fatalf("got %d bytes, want 60", len(raw))
	}
	var want bytes.Buffer
	_ = binary.Write(&want, binary.LittleEndian, ino.Block)
	if !bytes.Equal(raw, want.Bytes()) {
		t.Error("blockBytes did not reproduce the expected little-endian encoding")
	}
}
