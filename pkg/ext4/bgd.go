package ext4

import (
	"bytes"
	"encoding/binary"
)

// bgdCommon is the classic 32-byte block-group descriptor, present
// identically at the start of both the 32-byte and 64-byte variants.
type bgdCommon struct {
	BlockBitmapLo     uint32 // 0x00
	InodeBitmapLo     uint32
	InodeTableLo      uint32
	FreeBlocksCountLo uint16 // 0x0C
	FreeInodesCountLo uint16
	UsedDirsCountLo   uint16 // 0x10
	Flags             uint16
	ExcludeBitmapLo   uint32 // 0x14
	BlockBitmapCsumLo uint16 // 0x18
	InodeBitmapCsumLo uint16
	ItableUnusedLo    uint16 // 0x1C
	Checksum          uint16 // 0x1E
}

// bgdHi is the 32-byte extension present when the descriptor size is
// 64 bytes (INCOMPAT_64BIT).
type bgdHi struct {
	BlockBitmapHi     uint32 // 0x20
	InodeBitmapHi     uint32
	InodeTableHi      uint32
	FreeBlocksCountHi uint16 // 0x2C
	FreeInodesCountHi uint16
	UsedDirsCountHi   uint16 // 0x30
	ItableUnusedHi    uint16
	ExcludeBitmapHi   uint32 // 0x34
	BlockBitmapCsumHi uint16 // 0x38
	InodeBitmapCsumHi uint16
	_                 uint32 // reserved
}

// BlockGroupDescriptor is the decoded, width-unified view of a block
// group's descriptor: a tagged variant over the 32-byte and 64-byte
// on-disk forms, discriminated by whether the hi half was present at
// decode time. Accessors compose the lo/hi halves so callers never
// need to know which variant was on disk.
type BlockGroupDescriptor struct {
	bgdCommon
	bgdHi
	is64Bit bool
	raw     []byte
}

// DecodeBlockGroupDescriptor decodes a BGD from buf, which must be at
// least descSize bytes (32 or 64, per Superblock.DescSize()).
func DecodeBlockGroupDescriptor(buf []byte, descSize uint16) (*BlockGroupDescriptor, error) {
	if len(buf) < int(descSize) {
		return nil, newErr(KindArgument, "block group descriptor buffer too short: %d < %d", len(buf), descSize)
	}

	bgd := new(BlockGroupDescriptor)
	r := bytes.NewReader(buf)
	if err := binary.Read(r, binary.LittleEndian, &bgd.bgdCommon); err != nil {
		return nil, wrapErr(KindDecoding, err, "decoding block group descriptor")
	}

	if descSize >= 64 {
		if err := binary.Read(r, binary.LittleEndian, &bgd.bgdHi); err != nil {
			return nil, wrapErr(KindDecoding, err, "decoding 64-bit block group descriptor extension")
		}
		bgd.is64Bit = true
	}

	bgd.raw = append([]byte(nil), buf[:descSize]...)

	return bgd, nil
}

func (bgd *BlockGroupDescriptor) BlockBitmap() uint64 {
	if bgd.is64Bit {
		return uint64(bgd.BlockBitmapHi)<<32 | uint64(bgd.BlockBitmapLo)
	}
	return uint64(bgd.BlockBitmapLo)
}

func (bgd *BlockGroupDescriptor) InodeBitmap() uint64 {
	if bgd.is64Bit {
		return uint64(bgd.InodeBitmapHi)<<32 | uint64(bgd.InodeBitmapLo)
	}
	return uint64(bgd.InodeBitmapLo)
}

// InodeTable is the physical block number of the group's inode table.
func (bgd *BlockGroupDescriptor) InodeTable() uint64 {
	if bgd.is64Bit {
		return uint64(bgd.InodeTableHi)<<32 | uint64(bgd.InodeTableLo)
	}
	return uint64(bgd.InodeTableLo)
}

func (bgd *BlockGroupDescriptor) FreeBlocksCount() uint32 {
	if bgd.is64Bit {
		return uint32(bgd.FreeBlocksCountHi)<<16 | uint32(bgd.FreeBlocksCountLo)
	}
	return uint32(bgd.FreeBlocksCountLo)
}

func (bgd *BlockGroupDescriptor) FreeInodesCount() uint32 {
	if bgd.is64Bit {
		return uint32(bgd.FreeInodesCountHi)<<16 | uint32(bgd.FreeInodesCountLo)
	}
	return uint32(bgd.FreeInodesCountLo)
}

func (bgd *BlockGroupDescriptor) UsedDirsCount() uint32 {
	if bgd.is64Bit {
		return uint32(bgd.UsedDirsCountHi)<<16 | uint32(bgd.UsedDirsCountLo)
	}
	return uint32(bgd.UsedDirsCountLo)
}

// verifyChecksum checks the BGD's checksum against the algorithm
// selected by the filesystem's feature flags. uuid and groupNo feed
// the CRC input per the kernel's ext4_group_desc_csum.
func (bgd *BlockGroupDescriptor) verifyChecksum(sb *Superblock, groupNo uint32) error {
	metadataCsum := sb.HasMetadataCsum()
	gdtCsum := sb.HasGDTCsum()

	if !metadataCsum && !gdtCsum {
		return newErr(KindCorruption, "block group %d: no recognised checksum method (neither METADATA_CSUM nor GDT_CSUM set)", groupNo)
	}

	var groupNoBuf [4]byte
	binary.LittleEndian.PutUint32(groupNoBuf[:], groupNo)

	head := bgd.raw[:0x1E]

	if metadataCsum {
		crc := CRC32C(Crc32cInit, sb.UUID[:])
		crc = CRC32C(crc, groupNoBuf[:])
		crc = CRC32C(crc, head)
		if bgd.is64Bit {
			crc = CRC32C(crc, []byte{0, 0})
			crc = CRC32C(crc, bgd.raw[0x20:])
		}
		got := uint16(crc & 0xFFFF)
		if got != bgd.Checksum {
			return newErr(KindCorruption, "block group %d checksum mismatch: have 0x%04x want 0x%04x", groupNo, got, bgd.Checksum)
		}
		return nil
	}

	// GDT_CSUM: legacy CRC-16.
	crc := CRC16(Crc16Init, sb.UUID[:])
	crc = CRC16(crc, groupNoBuf[:])
	crc = CRC16(crc, head)
	if bgd.is64Bit {
		crc = CRC16(crc, []byte{0, 0})
		crc = CRC16(crc, bgd.raw[0x20:])
	}
	if crc != bgd.Checksum {
		return newErr(KindCorruption, "block group %d checksum mismatch: have 0x%04x want 0x%04x", groupNo, crc, bgd.Checksum)
	}
	return nil
}
