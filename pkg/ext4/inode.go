package ext4

import (
	"bytes"
	"encoding/binary"
)

// InodeBaseSize is the fixed size of the classic inode structure;
// i_extra_isize (if any) follows immediately after, up to s_inode_size.
const InodeBaseSize = 128

// Inode checksum field offsets, per the kernel's
// ext4_inode/ext4_inode_info layout. lo is i_osd2.linux2.l_i_checksum_lo,
// hi is i_checksum_hi. Both offsets are absolute, counted from the
// start of the inode.
const (
	inodeChecksumLoOffset = 0x7C
	inodeExtraIsizeOffset = 0x80
	inodeChecksumHiOffset = 0x82
)

// File type nibble values of i_mode (the high 4 bits).
const (
	ModeFIFO     = 0x1000
	ModeCharDev  = 0x2000
	ModeDir      = 0x4000
	ModeBlockDev = 0x6000
	ModeRegular  = 0x8000
	ModeSymlink  = 0xA000
	ModeSocket   = 0xC000
	modeTypeMask = 0xF000
)

// i_flags bits relevant to content-map dispatch.
const (
	InodeFlagIndex      = 0x1000
	InodeFlagInlineData = 0x10000000
	InodeFlagExtents    = 0x80000
	InodeFlagHugeFile   = 0x40000
)

// CreatorOS values; LINUX is the only one this reader special-cases
// (the inode checksum's has_lo rule).
const CreatorOSLinux = 0

// Inode is the decoded inode: the fixed 128-byte classic body plus
// whatever of the variable-length extension region i_extra_isize
// actually covers. The 60-byte i_block field is kept as an opaque
// array here; per SPEC_FULL.md's design notes it is interpreted
// lazily, by the File Content Map, according to i_flags.EXTENTS.
//
// Extension fields (ExtraIsize onward) are zero when the on-disk
// i_extra_isize is too small to carry them; HasChecksumHi reports
// whether that sub-range was actually present rather than callers
// guessing from a zero value.
type Inode struct {
	Mode       uint16 // 0x00
	UIDLo      uint16
	SizeLo     uint32
	ATime      uint32 // 0x08
	CTime      uint32
	MTime      uint32
	DTime      uint32
	GIDLo      uint16 // 0x18
	LinksCount uint16
	BlocksLo   uint32
	Flags      uint32 // 0x20
	OSD1       uint32
	Block      [15]uint32 // 0x28 .. 0x64 (60 bytes, polymorphic)
	Generation uint32     // 0x64
	FileACLLo  uint32
	SizeHigh   uint32
	ObsoFAddr  uint32
	BlocksHigh uint16 // 0x74
	FileACLHi  uint16
	UIDHi      uint16
	GIDHi      uint16
	ChecksumLo uint16 // 0x7C
	_          uint16 // 0x7E: l_i_reserved, end of the 128-byte base

	// -- extension region (present iff i_extra_isize covers it) --
	ExtraIsize  uint16 // 0x80
	ChecksumHi  uint16 // 0x82
	CTimeExtra  uint32 // 0x84
	MTimeExtra  uint32
	ATimeExtra  uint32
	CrTime      uint32
	CrTimeExtra uint32
	VersionHi   uint32
	ProjID      uint32

	// number is filled in by the session's inode locator; it is not
	// part of the on-disk structure but checksum verification needs
	// it (the inode checksum CRC is seeded with the inode number, not
	// just the inode's own bytes).
	number uint32
	raw    []byte
}

// DecodeInode decodes size bytes (s_inode_size) into an Inode. size
// may exceed InodeBaseSize; the extension region is decoded
// defensively, field by field, stopping as soon as i_extra_isize runs
// out — i_extra_isize can be smaller than the full named extra-field
// set, and s_inode_size can in turn be smaller than 128 plus every
// named extra field.
func DecodeInode(buf []byte, size uint16, number uint32) (*Inode, error) {
	if len(buf) < int(size) {
		return nil, newErr(KindArgument, "inode buffer too short: %d < %d", len(buf), size)
	}
	if size < InodeBaseSize {
		return nil, newErr(KindArgument, "inode size %d smaller than base inode size %d", size, InodeBaseSize)
	}

	wire := new(inodeBaseWire)
	if err := binary.Read(bytes.NewReader(buf[:InodeBaseSize]), binary.LittleEndian, wire); err != nil {
		return nil, wrapErr(KindDecoding, err, "decoding inode %d", number)
	}

	ino := wire.asInode()
	ino.number = number
	ino.raw = append([]byte(nil), buf[:size]...)

	extra := size - InodeBaseSize
	ino.decodeExtension(buf[InodeBaseSize:size], extra)

	return ino, nil
}

// inodeBaseWire is the exact 128-byte on-disk layout of the classic
// inode fields, ending at i_osd2.linux2.l_i_reserved (offset 0x7E).
type inodeBaseWire struct {
	Mode       uint16
	UIDLo      uint16
	SizeLo     uint32
	ATime      uint32
	CTime      uint32
	MTime      uint32
	DTime      uint32
	GIDLo      uint16
	LinksCount uint16
	BlocksLo   uint32
	Flags      uint32
	OSD1       uint32
	Block      [15]uint32
	Generation uint32
	FileACLLo  uint32
	SizeHigh   uint32
	ObsoFAddr  uint32
	BlocksHigh uint16
	FileACLHi  uint16
	UIDHi      uint16
	GIDHi      uint16
	ChecksumLo uint16
	_          uint16
}

func (w *inodeBaseWire) asInode() *Inode {
	return &Inode{
		Mode: w.Mode, UIDLo: w.UIDLo, SizeLo: w.SizeLo, ATime: w.ATime,
		CTime: w.CTime, MTime: w.MTime, DTime: w.DTime, GIDLo: w.GIDLo,
		LinksCount: w.LinksCount, BlocksLo: w.BlocksLo, Flags: w.Flags,
		OSD1: w.OSD1, Block: w.Block, Generation: w.Generation,
		FileACLLo: w.FileACLLo, SizeHigh: w.SizeHigh, ObsoFAddr: w.ObsoFAddr,
		BlocksHigh: w.BlocksHigh, FileACLHi: w.FileACLHi, UIDHi: w.UIDHi,
		GIDHi: w.GIDHi, ChecksumLo: w.ChecksumLo,
	}
}

// extraField describes one named field of the extension region: its
// offset relative to the start of the extension (i.e. relative to
// absolute offset InodeBaseSize) and its width in bytes.
type extraField struct {
	offset uint16
	width  uint16
}

var (
	extraIsizeField  = extraField{0x00, 2} // absolute 0x80
	checksumHiField  = extraField{0x02, 2} // absolute 0x82
	cTimeExtraField  = extraField{0x04, 4}
	mTimeExtraField  = extraField{0x08, 4}
	aTimeExtraField  = extraField{0x0C, 4}
	crTimeField      = extraField{0x10, 4}
	crTimeExtraField = extraField{0x14, 4}
	versionHiField   = extraField{0x18, 4}
	projIDField      = extraField{0x1C, 4}
)

// covers reports whether extra (the number of extension bytes
// actually present) reaches far enough to hold f in full.
func (f extraField) covers(extra uint16) bool {
	return extra >= f.offset+f.width
}

// decodeExtension fills in the extension fields present in ext, which
// holds exactly extra bytes (size - InodeBaseSize). Fields beyond what
// extra (and, for everything but i_extra_isize itself, ExtraIsize)
// covers are left at their zero value.
func (ino *Inode) decodeExtension(ext []byte, extra uint16) {
	if !extraIsizeField.covers(extra) {
		return
	}
	ino.ExtraIsize = binary.LittleEndian.Uint16(ext[extraIsizeField.offset:])

	// i_extra_isize bounds how much of the extension the filesystem
	// actually populated; never read past it even if more bytes are
	// physically present in the buffer.
	avail := extra
	if ino.ExtraIsize < avail {
		avail = ino.ExtraIsize
	}

	if checksumHiField.covers(avail) {
		ino.ChecksumHi = binary.LittleEndian.Uint16(ext[checksumHiField.offset:])
	}
	if cTimeExtraField.covers(avail) {
		ino.CTimeExtra = binary.LittleEndian.Uint32(ext[cTimeExtraField.offset:])
	}
	if mTimeExtraField.covers(avail) {
		ino.MTimeExtra = binary.LittleEndian.Uint32(ext[mTimeExtraField.offset:])
	}
	if aTimeExtraField.covers(avail) {
		ino.ATimeExtra = binary.LittleEndian.Uint32(ext[aTimeExtraField.offset:])
	}
	if crTimeField.covers(avail) {
		ino.CrTime = binary.LittleEndian.Uint32(ext[crTimeField.offset:])
	}
	if crTimeExtraField.covers(avail) {
		ino.CrTimeExtra = binary.LittleEndian.Uint32(ext[crTimeExtraField.offset:])
	}
	if versionHiField.covers(avail) {
		ino.VersionHi = binary.LittleEndian.Uint32(ext[versionHiField.offset:])
	}
	if projIDField.covers(avail) {
		ino.ProjID = binary.LittleEndian.Uint32(ext[projIDField.offset:])
	}
}

// HasChecksumHi reports whether i_extra_isize reaches far enough for
// i_checksum_hi to be a meaningful field (the inode checksum's
// has_hi rule: i_extra_isize > 2).
func (ino *Inode) HasChecksumHi() bool {
	return ino.ExtraIsize > 2
}

// Mode/type predicates, mirroring the vdecompiler InodeIs* helper
// names and style.

func (ino *Inode) fileType() uint16 { return ino.Mode & modeTypeMask }

func (ino *Inode) IsRegularFile() bool { return ino.fileType() == ModeRegular }
func (ino *Inode) IsDirectory() bool   { return ino.fileType() == ModeDir }
func (ino *Inode) IsSymlink() bool     { return ino.fileType() == ModeSymlink }
func (ino *Inode) IsFIFO() bool        { return ino.fileType() == ModeFIFO }
func (ino *Inode) IsCharDevice() bool  { return ino.fileType() == ModeCharDev }
func (ino *Inode) IsBlockDevice() bool { return ino.fileType() == ModeBlockDev }
func (ino *Inode) IsSocket() bool      { return ino.fileType() == ModeSocket }

// Permissions returns the low 12 bits of i_mode (rwx + setuid/setgid/sticky).
func (ino *Inode) Permissions() uint16 { return ino.Mode &^ modeTypeMask }

// Size is the inode's full byte length, assembled from the split
// low/high 32-bit size fields.
func (ino *Inode) Size() uint64 {
	return uint64(ino.SizeHigh)<<32 | uint64(ino.SizeLo)
}

// HasExtents reports whether this inode's i_block should be read as
// an extent tree (requires both the filesystem feature and the
// per-inode flag).
func (ino *Inode) HasExtents(sb *Superblock) bool {
	return sb.HasExtents() && ino.Flags&InodeFlagExtents != 0
}

func (ino *Inode) HasInlineData() bool { return ino.Flags&InodeFlagInlineData != 0 }
func (ino *Inode) HasIndex() bool      { return ino.Flags&InodeFlagIndex != 0 }
func (ino *Inode) HasHugeFile() bool   { return ino.Flags&InodeFlagHugeFile != 0 }

// blockBytes returns the 60-byte i_block array in its on-disk byte order.
func (ino *Inode) blockBytes() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(60)
	_ = binary.Write(buf, binary.LittleEndian, ino.Block)
	return buf.Bytes()
}

// VerifyChecksum checks the inode's CRC-32C against the seed/offset
// algorithm described in SPEC_FULL.md §4.3.
func (ino *Inode) VerifyChecksum(sb *Superblock, seed uint32) error {
	if !sb.HasMetadataCsum() {
		return nil
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

	var expected uint32
	if hasLo {
		expected |= uint32(ino.ChecksumLo)
	}
	if hasHi {
		expected |= uint32(ino.ChecksumHi) << 16
	}

	if crc != expected {
		return newErr(KindCorruption, "inode %d checksum mismatch: have 0x%08x want 0x%08x", ino.number, crc, expected)
	}

	return nil
}
