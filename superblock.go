package ext2

import (
	"bytes"
	"encoding/binary"

	"github.com/diskfs/go-ext2/sector"
	"github.com/diskfs/go-ext2/volume"
	"github.com/google/uuid"
)

// Ext2Magic is the signature at superblock offset 56, used to confirm the
// presence of ext2 on a volume.
const Ext2Magic uint16 = 0xef53

const (
	// SuperblockOffset is the fixed byte position of the superblock from
	// the start of the volume.
	SuperblockOffset = 1024
	// SuperblockSize is the on-disk size of the superblock record.
	SuperblockSize = 1024
)

// filesystem state (superblock offset 58)
const (
	fsStateClean  uint16 = 1
	fsStateErrors uint16 = 2
)

// behaviour on error (superblock offset 60)
const (
	errorsIgnore    uint16 = 1
	errorsRemountRO uint16 = 2
	errorsPanic     uint16 = 3
)

type featureFlags uint32

func (f featureFlags) included(a featureFlags) bool {
	return f&a == a
}

// optional features: not required to read or write the volume
const (
	featureOptPrealloc      featureFlags = 0x0001
	featureOptAFSInodes     featureFlags = 0x0002
	featureOptJournal       featureFlags = 0x0004
	featureOptExtendedInode featureFlags = 0x0008
	featureOptSelfResize    featureFlags = 0x0010
	featureOptHashIndex     featureFlags = 0x0020
)

// required features: cannot mount without supporting these
const (
	featureReqCompression   featureFlags = 0x0001
	featureReqDirectoryType featureFlags = 0x0002
	featureReqReplayJournal featureFlags = 0x0004
	featureReqJournalDevice featureFlags = 0x0008
)

// read-only features: must mount read-only without supporting these
const (
	featureROnlySparseSuper featureFlags = 0x0001
	featureROnlyFileSize64  featureFlags = 0x0002
	featureROnlyBtreeDir    featureFlags = 0x0004
)

// superblock is the filesystem's root metadata record, located at byte 1024
// from the beginning of the volume and exactly 1024 bytes in length. For
// example, if the volume uses 512 byte sectors, the superblock occupies all
// of sectors 2 and 3.
type superblock struct {
	inodeCount            uint32
	blockCount            uint32
	reservedBlocks        uint32
	freeBlocks            uint32
	freeInodes            uint32
	firstDataBlock        uint32
	logBlockSize          uint32
	logFragSize           int32
	blocksPerGroup        uint32
	fragsPerGroup         uint32
	inodesPerGroup        uint32
	mountTime             uint32
	writeTime             uint32
	mountCount            uint16
	mountsToFsck          int16
	magic                 uint16
	state                 uint16
	errorBehaviour        uint16
	revisionMinor         uint16
	lastCheck             uint32
	checkInterval         uint32
	creatorOS             uint32
	revisionMajor         uint32
	reservedBlocksUID     uint16
	reservedBlocksGID     uint16
	firstNonReservedInode uint32
	inodeSize             uint16
	backupBlockGroup      uint16
	featuresOptional      featureFlags
	featuresRequired      featureFlags
	featuresReadOnly      featureFlags
	uuid                  uuid.UUID
	volumeLabel           string
	lastMountedPath       string
	compressionAlgorithms uint32
	preallocFileBlocks    uint8
	preallocDirBlocks     uint8
	journalUUID           [16]byte
	journalInode          uint32
	journalDevice         uint32
	orphanInodeHead       uint32
}

// superblockFromBytes reads a superblock from a 1024-byte slice. Fields are
// little-endian at fixed offsets; revision >= 1 fields past offset 84 are
// meaningful only when revisionMajor says so, but decoding them is always
// safe.
func superblockFromBytes(b []byte) (*superblock, error) {
	if len(b) < SuperblockSize {
		return nil, &OutOfBoundsError{Index: uint64(len(b))}
	}
	sb := superblock{
		inodeCount:            binary.LittleEndian.Uint32(b[0x0:0x4]),
		blockCount:            binary.LittleEndian.Uint32(b[0x4:0x8]),
		reservedBlocks:        binary.LittleEndian.Uint32(b[0x8:0xc]),
		freeBlocks:            binary.LittleEndian.Uint32(b[0xc:0x10]),
		freeInodes:            binary.LittleEndian.Uint32(b[0x10:0x14]),
		firstDataBlock:        binary.LittleEndian.Uint32(b[0x14:0x18]),
		logBlockSize:          binary.LittleEndian.Uint32(b[0x18:0x1c]),
		logFragSize:           int32(binary.LittleEndian.Uint32(b[0x1c:0x20])),
		blocksPerGroup:        binary.LittleEndian.Uint32(b[0x20:0x24]),
		fragsPerGroup:         binary.LittleEndian.Uint32(b[0x24:0x28]),
		inodesPerGroup:        binary.LittleEndian.Uint32(b[0x28:0x2c]),
		mountTime:             binary.LittleEndian.Uint32(b[0x2c:0x30]),
		writeTime:             binary.LittleEndian.Uint32(b[0x30:0x34]),
		mountCount:            binary.LittleEndian.Uint16(b[0x34:0x36]),
		mountsToFsck:          int16(binary.LittleEndian.Uint16(b[0x36:0x38])),
		magic:                 binary.LittleEndian.Uint16(b[0x38:0x3a]),
		state:                 binary.LittleEndian.Uint16(b[0x3a:0x3c]),
		errorBehaviour:        binary.LittleEndian.Uint16(b[0x3c:0x3e]),
		revisionMinor:         binary.LittleEndian.Uint16(b[0x3e:0x40]),
		lastCheck:             binary.LittleEndian.Uint32(b[0x40:0x44]),
		checkInterval:         binary.LittleEndian.Uint32(b[0x44:0x48]),
		creatorOS:             binary.LittleEndian.Uint32(b[0x48:0x4c]),
		revisionMajor:         binary.LittleEndian.Uint32(b[0x4c:0x50]),
		reservedBlocksUID:     binary.LittleEndian.Uint16(b[0x50:0x52]),
		reservedBlocksGID:     binary.LittleEndian.Uint16(b[0x52:0x54]),
		firstNonReservedInode: binary.LittleEndian.Uint32(b[0x54:0x58]),
		inodeSize:             binary.LittleEndian.Uint16(b[0x58:0x5a]),
		backupBlockGroup:      binary.LittleEndian.Uint16(b[0x5a:0x5c]),
		featuresOptional:      featureFlags(binary.LittleEndian.Uint32(b[0x5c:0x60])),
		featuresRequired:      featureFlags(binary.LittleEndian.Uint32(b[0x60:0x64])),
		featuresReadOnly:      featureFlags(binary.LittleEndian.Uint32(b[0x64:0x68])),
		volumeLabel:           cstring(b[0x78:0x88]),
		lastMountedPath:       cstring(b[0x88:0xc8]),
		compressionAlgorithms: binary.LittleEndian.Uint32(b[0xc8:0xcc]),
		preallocFileBlocks:    b[0xcc],
		preallocDirBlocks:     b[0xcd],
		journalInode:          binary.LittleEndian.Uint32(b[0xe0:0xe4]),
		journalDevice:         binary.LittleEndian.Uint32(b[0xe4:0xe8]),
		orphanInodeHead:       binary.LittleEndian.Uint32(b[0xe8:0xec]),
	}
	fsUUID, err := uuid.FromBytes(b[0x68:0x78])
	if err != nil {
		return nil, err
	}
	sb.uuid = fsUUID
	copy(sb.journalUUID[:], b[0xd0:0xe0])

	if sb.magic != Ext2Magic {
		return nil, &BadMagicError{Magic: sb.magic}
	}
	return &sb, nil
}

// toBytes serialises the superblock back into its 1024-byte on-disk form.
func (sb *superblock) toBytes() []byte {
	b := make([]byte, SuperblockSize)
	binary.LittleEndian.PutUint32(b[0x0:0x4], sb.inodeCount)
	binary.LittleEndian.PutUint32(b[0x4:0x8], sb.blockCount)
	binary.LittleEndian.PutUint32(b[0x8:0xc], sb.reservedBlocks)
	binary.LittleEndian.PutUint32(b[0xc:0x10], sb.freeBlocks)
	binary.LittleEndian.PutUint32(b[0x10:0x14], sb.freeInodes)
	binary.LittleEndian.PutUint32(b[0x14:0x18], sb.firstDataBlock)
	binary.LittleEndian.PutUint32(b[0x18:0x1c], sb.logBlockSize)
	binary.LittleEndian.PutUint32(b[0x1c:0x20], uint32(sb.logFragSize))
	binary.LittleEndian.PutUint32(b[0x20:0x24], sb.blocksPerGroup)
	binary.LittleEndian.PutUint32(b[0x24:0x28], sb.fragsPerGroup)
	binary.LittleEndian.PutUint32(b[0x28:0x2c], sb.inodesPerGroup)
	binary.LittleEndian.PutUint32(b[0x2c:0x30], sb.mountTime)
	binary.LittleEndian.PutUint32(b[0x30:0x34], sb.writeTime)
	binary.LittleEndian.PutUint16(b[0x34:0x36], sb.mountCount)
	binary.LittleEndian.PutUint16(b[0x36:0x38], uint16(sb.mountsToFsck))
	binary.LittleEndian.PutUint16(b[0x38:0x3a], sb.magic)
	binary.LittleEndian.PutUint16(b[0x3a:0x3c], sb.state)
	binary.LittleEndian.PutUint16(b[0x3c:0x3e], sb.errorBehaviour)
	binary.LittleEndian.PutUint16(b[0x3e:0x40], sb.revisionMinor)
	binary.LittleEndian.PutUint32(b[0x40:0x44], sb.lastCheck)
	binary.LittleEndian.PutUint32(b[0x44:0x48], sb.checkInterval)
	binary.LittleEndian.PutUint32(b[0x48:0x4c], sb.creatorOS)
	binary.LittleEndian.PutUint32(b[0x4c:0x50], sb.revisionMajor)
	binary.LittleEndian.PutUint16(b[0x50:0x52], sb.reservedBlocksUID)
	binary.LittleEndian.PutUint16(b[0x52:0x54], sb.reservedBlocksGID)
	binary.LittleEndian.PutUint32(b[0x54:0x58], sb.firstNonReservedInode)
	binary.LittleEndian.PutUint16(b[0x58:0x5a], sb.inodeSize)
	binary.LittleEndian.PutUint16(b[0x5a:0x5c], sb.backupBlockGroup)
	binary.LittleEndian.PutUint32(b[0x5c:0x60], uint32(sb.featuresOptional))
	binary.LittleEndian.PutUint32(b[0x60:0x64], uint32(sb.featuresRequired))
	binary.LittleEndian.PutUint32(b[0x64:0x68], uint32(sb.featuresReadOnly))
	copy(b[0x68:0x78], sb.uuid[:])
	copy(b[0x78:0x88], sb.volumeLabel)
	copy(b[0x88:0xc8], sb.lastMountedPath)
	binary.LittleEndian.PutUint32(b[0xc8:0xcc], sb.compressionAlgorithms)
	b[0xcc] = sb.preallocFileBlocks
	b[0xcd] = sb.preallocDirBlocks
	copy(b[0xd0:0xe0], sb.journalUUID[:])
	binary.LittleEndian.PutUint32(b[0xe0:0xe4], sb.journalInode)
	binary.LittleEndian.PutUint32(b[0xe4:0xe8], sb.journalDevice)
	binary.LittleEndian.PutUint32(b[0xe8:0xec], sb.orphanInodeHead)
	return b
}

// findSuperblock reads and validates the superblock out of a volume,
// returning the record and its on-disk address.
func findSuperblock(v volume.Volume) (*superblock, sector.Address, error) {
	size := v.SectorSize()
	start := sector.FromIndex(size, SuperblockOffset)
	end := sector.FromIndex(size, SuperblockOffset+SuperblockSize)
	if !v.Size().Contains(end) {
		return nil, start, &volume.OutOfBoundsError{Addr: end, Size: v.Size()}
	}
	sl, err := v.SliceUnchecked(start, end)
	if err != nil {
		return nil, start, err
	}
	sb, err := superblockFromBytes(sl.Bytes())
	if err != nil {
		return nil, start, err
	}
	return sb, start, nil
}

// blockSize returns the filesystem block size in bytes, 1024 << logBlockSize.
func (sb *superblock) blockSize() uint32 {
	return 1024 << sb.logBlockSize
}

// blockGroupCount derives the number of block groups from the block totals
// and from the inode totals; a consistent superblock yields the same count
// both ways.
func (sb *superblock) blockGroupCount() (uint32, error) {
	byBlocks := sb.blockCount / sb.blocksPerGroup
	if sb.blockCount%sb.blocksPerGroup != 0 {
		byBlocks++
	}
	byInodes := sb.inodeCount / sb.inodesPerGroup
	if sb.inodeCount%sb.inodesPerGroup != 0 {
		byInodes++
	}
	if byBlocks != byInodes {
		return 0, &BadBlockGroupCountError{ByBlocks: byBlocks, ByInodes: byInodes}
	}
	return byBlocks, nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
