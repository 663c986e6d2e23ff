package ext4

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// SuperblockOffset is the absolute byte offset of the superblock on
// every ext4 device, regardless of block size.
const SuperblockOffset = 0x400

// SuperblockSize is the fixed on-disk size of the superblock
// structure. Anything beyond the last named field is reserved.
const SuperblockSize = 1024

// Signature is the magic number identifying an ext2/3/4 superblock.
const Signature = 0xEF53

const (
	RootDirInode     = 2
	ResizeInode      = 7
	JournalInode     = 8
	BootLoaderInode  = 5
	DefectiveBlocksInode = 1
)

// Compat feature bits (s_feature_compat).
const (
	CompatDirPrealloc  = 0x1
	CompatHasJournal   = 0x4
	CompatExtAttr      = 0x8
	CompatResizeInode  = 0x10
	CompatDirIndex     = 0x20
	CompatSparseSuper2 = 0x200
)

// Incompat feature bits (s_feature_incompat).
const (
	IncompatCompression = 0x1
	IncompatFiletype    = 0x2
	IncompatRecover     = 0x4
	IncompatJournalDev  = 0x8
	IncompatMetaBG      = 0x10
	IncompatExtents     = 0x40
	Incompat64Bit       = 0x80
	IncompatMMP         = 0x100
	IncompatFlexBG      = 0x200
	IncompatEAInode     = 0x400
	IncompatDirData     = 0x1000
	IncompatCsumSeed    = 0x2000
	IncompatLargeDir    = 0x4000
	IncompatInlineData  = 0x8000
	IncompatEncrypt     = 0x10000
)

// RO-compat feature bits (s_feature_ro_compat).
const (
	ROCompatSparseSuper = 0x1
	ROCompatLargeFile   = 0x2
	ROCompatHugeFile     = 0x8
	ROCompatGDTCsum      = 0x10
	ROCompatDirNlink     = 0x20
	ROCompatExtraIsize   = 0x40
	ROCompatMetadataCsum = 0x400
)

// Superblock is the 1024-byte structure at absolute offset 0x400.
// Field names mirror the kernel's ext4_super_block member names
// (sans the `s_` prefix) so the on-disk layout reference and this
// struct can be read side by side. Reserved and currently-unused
// regions are blank `_` fields, the packed-with-padding-fields idiom
// used throughout this package for on-disk layouts.
type Superblock struct {
	InodesCount        uint32 // 0x00
	BlocksCountLo      uint32
	RBlocksCountLo     uint32
	FreeBlocksCountLo  uint32
	FreeInodesCount    uint32 // 0x10
	FirstDataBlock     uint32
	LogBlockSize       uint32
	LogClusterSize     uint32
	BlocksPerGroup     uint32 // 0x20
	ClustersPerGroup   uint32
	InodesPerGroup     uint32
	MTime              uint32
	WTime              uint32 // 0x30
	MntCount           uint16
	MaxMntCount        uint16
	Magic              uint16
	State              uint16
	Errors             uint16
	MinorRevLevel      uint16
	LastCheck          uint32 // 0x40
	CheckInterval      uint32
	CreatorOS          uint32
	RevLevel           uint32
	DefResUID          uint16 // 0x50
	DefResGID          uint16

	// -- dynamic-rev fields --
	FirstIno          uint32 // 0x54
	InodeSize         uint16
	BlockGroupNr      uint16
	FeatureCompat     uint32
	FeatureIncompat   uint32 // 0x60
	FeatureROCompat   uint32
	UUID              [16]byte
	VolumeName        [16]byte // 0x78
	LastMounted       [64]byte // 0x88
	AlgorithmUsageBitmap uint32 // 0xC8

	// -- performance hints --
	PreallocBlocks    uint8 // 0xCC
	PreallocDirBlocks uint8
	ReservedGDTBlocks uint16

	// -- journaling support --
	JournalUUID     [16]byte // 0xD0
	JournalInum     uint32
	JournalDev      uint32
	LastOrphan      uint32
	HashSeed        [4]uint32 // 0xEC
	DefHashVersion  uint8
	JnlBackupType   uint8
	DescSizeRaw     uint16
	DefaultMountOpts uint32 // 0x100
	FirstMetaBG     uint32
	MkfsTime        uint32
	JnlBlocks       [17]uint32 // 0x10C

	// -- 64-bit support --
	BlocksCountHi     uint32 // 0x150
	RBlocksCountHi    uint32
	FreeBlocksCountHi uint32
	MinExtraIsize     uint16
	WantExtraIsize    uint16
	Flags             uint32 // 0x160
	RaidStride        uint16
	MMPInterval       uint16
	MMPBlock          uint64
	RaidStripeWidth   uint32 // 0x170
	LogGroupsPerFlex  uint8
	ChecksumType      uint8
	ReservedPad       uint16
	KBytesWritten     uint64 // 0x178
	SnapshotInum      uint32 // 0x180
	SnapshotID        uint32
	SnapshotRBlocksCount uint64
	SnapshotList      uint32 // 0x190
	ErrorCount        uint32
	FirstErrorTime    uint32
	FirstErrorIno     uint32
	FirstErrorBlock   uint64 // 0x1A0
	FirstErrorFunc    [32]byte
	FirstErrorLine    uint32 // 0x1C8
	LastErrorTime     uint32
	LastErrorIno      uint32
	LastErrorLine     uint32
	LastErrorBlock    uint64 // 0x1D8
	LastErrorFunc     [32]byte
	MountOpts         [64]byte // 0x200
	UsrQuotaInum      uint32 // 0x240
	GrpQuotaInum      uint32
	OverheadClusters  uint32
	BackupBGs         [2]uint32
	EncryptAlgos      [4]uint8 // 0x254
	EncryptPWSalt     [16]byte
	LPFIno            uint32 // 0x268
	PrjQuotaInum      uint32
	ChecksumSeed      uint32
	WtimeHi           uint8
	MtimeHi           uint8
	MkfsTimeHi        uint8
	LastcheckHi       uint8
	FirstErrorTimeHi  uint8
	LastErrorTimeHi   uint8
	Pad               [2]uint8
	Encoding          uint16
	EncodingFlags     uint16
	OrphanFileInum    uint32
	Reserved          [94]uint32 // 0x284 .. 0x3FC
	Checksum          uint32     // 0x3FC
}

// DecodeSuperblock parses a 1024-byte superblock image. It does not perform I/O
// and does not verify the checksum; call VerifyChecksum separately.
func DecodeSuperblock(buf []byte) (*Superblock, error) {
	if len(buf) < SuperblockSize {
		return nil, newErr(KindArgument, "superblock buffer too short: %d bytes", len(buf))
	}

	sb := new(Superblock)
	if err := binary.Read(bytes.NewReader(buf[:SuperblockSize]), binary.LittleEndian, sb); err != nil {
		return nil, wrapErr(KindDecoding, err, "decoding superblock")
	}

	if sb.Magic != Signature {
		return nil, newErr(KindCorruption, "bad superblock magic 0x%04x", sb.Magic)
	}

	return sb, nil
}

// Encode re-serialises the superblock to its fixed 1024-byte wire
// form, used for checksum computation and round-trip testing.
func (sb *Superblock) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(SuperblockSize)
	_ = binary.Write(buf, binary.LittleEndian, sb)
	return buf.Bytes()
}

func (sb *Superblock) hasIncompat(flag uint32) bool { return sb.FeatureIncompat&flag != 0 }
func (sb *Superblock) hasROCompat(flag uint32) bool  { return sb.FeatureROCompat&flag != 0 }
func (sb *Superblock) hasCompat(flag uint32) bool    { return sb.FeatureCompat&flag != 0 }

func (sb *Superblock) Has64Bit() bool        { return sb.hasIncompat(Incompat64Bit) }
func (sb *Superblock) HasFiletype() bool     { return sb.hasIncompat(IncompatFiletype) }
func (sb *Superblock) HasExtents() bool      { return sb.hasIncompat(IncompatExtents) }
func (sb *Superblock) HasFlexBG() bool       { return sb.hasIncompat(IncompatFlexBG) }
func (sb *Superblock) HasCsumSeed() bool     { return sb.hasIncompat(IncompatCsumSeed) }
func (sb *Superblock) HasInlineData() bool   { return sb.hasIncompat(IncompatInlineData) }
func (sb *Superblock) HasSparseSuper() bool  { return sb.hasROCompat(ROCompatSparseSuper) }
func (sb *Superblock) HasMetadataCsum() bool { return sb.hasROCompat(ROCompatMetadataCsum) }
func (sb *Superblock) HasGDTCsum() bool      { return sb.hasROCompat(ROCompatGDTCsum) }
func (sb *Superblock) HasHugeFile() bool     { return sb.hasROCompat(ROCompatHugeFile) }

// BlockSize is the filesystem's block size in bytes: 2^(10+log_block_size).
func (sb *Superblock) BlockSize() uint32 {
	return 1024 << sb.LogBlockSize
}

// BlocksCount is the filesystem's total block count, assembled from
// the split low/high 32-bit fields.
func (sb *Superblock) BlocksCount() uint64 {
	return uint64(sb.BlocksCountHi)<<32 | uint64(sb.BlocksCountLo)
}

// GroupsPerFlex is the number of block groups bundled per flex group:
// 2^log_groups_per_flex. Zero (LogGroupsPerFlex == 0) means flex
// groups are not in effect (a single "flex" spans one group).
func (sb *Superblock) GroupsPerFlex() uint64 {
	if sb.LogGroupsPerFlex == 0 {
		return 1
	}
	return 1 << sb.LogGroupsPerFlex
}

// DescSize is the effective on-disk size of each block-group
// descriptor: the s_desc_size field under INCOMPAT_64BIT, else the
// classic 32.
func (sb *Superblock) DescSize() uint16 {
	if sb.Has64Bit() && sb.DescSizeRaw != 0 {
		return sb.DescSizeRaw
	}
	return 32
}

// TotalGroups is the number of block groups spanning the filesystem.
func (sb *Superblock) TotalGroups() uint64 {
	bpg := uint64(sb.BlocksPerGroup)
	if bpg == 0 {
		return 0
	}
	return (sb.BlocksCount() + bpg - 1) / bpg
}

// UUIDString renders the filesystem UUID in canonical 36-character form.
func (sb *Superblock) UUIDString() string {
	id, err := uuid.FromBytes(sb.UUID[:])
	if err != nil {
		return fmt.Sprintf("%x", sb.UUID)
	}
	return id.String()
}

// VerifyChecksum checks the superblock's CRC-32C against the bytes
// that produced it, per the METADATA_CSUM algorithm: CRC32C over
// bytes [0, 0x3FC). Returns nil if METADATA_CSUM is unset (nothing to
// verify) or if the checksum matches; KindCorruption otherwise.
func (sb *Superblock) VerifyChecksum(raw []byte) error {
	if !sb.HasMetadataCsum() {
		return nil
	}
	if len(raw) < SuperblockSize {
		return newErr(KindArgument, "superblock buffer too short to verify checksum")
	}
	got := CRC32C(Crc32cInit, raw[:0x3FC])
	if got != sb.Checksum {
		return newErr(KindCorruption, "superblock checksum mismatch: have 0x%08x want 0x%08x", got, sb.Checksum)
	}
	return nil
}

// CsumSeed returns the per-filesystem CRC seed used for every
// per-object checksum (inode, directory block, extent node): the
// explicit s_checksum_seed field when INCOMPAT_CSUM_SEED is set,
// else CRC32C(UUID).
func (sb *Superblock) CsumSeed() uint32 {
	if sb.HasCsumSeed() {
		return sb.ChecksumSeed
	}
	return CRC32C(Crc32cInit, sb.UUID[:])
}

// HugeFileUnitIsFSBlock documents the resolution of the HUGE_FILE
// i_blocks_lo unit ambiguity: this implementation interprets it in
// filesystem-block units, matching e2fsprogs/kernel behaviour.
func (sb *Superblock) HugeFileUnitIsFSBlock() bool {
	return true
}
