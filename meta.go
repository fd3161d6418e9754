package dbf

import (
	"time"
)

const (
	headerSize     = 32
	descriptorSize = 32
	backlinkSize   = 263
	maxNameLength  = 10

	headerTerminator byte = 0x0D
	deletedFlag      byte = 0x2A
)

// Version bytes commonly found in the first byte of a table.
const (
	VersionFoxBase        byte = 0x02
	VersionDBase3         byte = 0x03
	VersionDBase4         byte = 0x04
	VersionVFP            byte = 0x30
	VersionVFPAutoInc     byte = 0x31
	VersionVFPVarchar     byte = 0x32
	VersionDBase4SQL      byte = 0x43
	VersionDBase4SQLSys   byte = 0x63
	VersionDBase3Memo     byte = 0x83
	VersionDBase4Memo     byte = 0x8B
	VersionDBase4SQLMemo  byte = 0xCB
	VersionFoxPro2Memo    byte = 0xF5
	VersionFoxBaseDBase3  byte = 0xFB
	versionMemoBit        byte = 0x80
	versionDBase4MemoBits byte = 0x08
)

// Variant is the xBase dialect a table is written in.
type Variant int

const (
	DBase3 Variant = iota
	DBase4
	VisualFoxPro
)

func (v Variant) String() string {
	switch v {
	case DBase3:
		return "dBase III"
	case DBase4:
		return "dBase IV/FoxPro"
	case VisualFoxPro:
		return "Visual FoxPro"
	default:
		return "unknown"
	}
}

func variantOf(version byte) Variant {
	switch version {
	case VersionVFP, VersionVFPAutoInc, VersionVFPVarchar:
		return VisualFoxPro
	case VersionDBase4, VersionDBase4SQL, VersionDBase4SQLSys, VersionDBase4Memo,
		VersionDBase4SQLMemo, VersionFoxPro2Memo:
		return DBase4
	default:
		return DBase3
	}
}

// DBFHeader is the fixed 32 byte prefix of a table.
type DBFHeader struct {
	Version          byte
	LastUpdateYear   byte
	LastUpdateMonth  byte
	LastUpdateDay    byte
	NumRecords       uint32
	HeaderLength     uint16
	RecordLength     uint16
	Reserved         [2]byte
	Flag             byte // incomplete transaction
	EncryptFlag      byte
	Reserved2        [12]byte
	TableFlags       byte
	LanguageDriverID byte // codepage mark
	Reserved3        [2]byte
}

// Variant reports the dialect selected by the version byte.
func (h *DBFHeader) Variant() Variant {
	return variantOf(h.Version)
}

// Modified returns the last update date. Years are stored as an offset from 1900.
func (h *DBFHeader) Modified() time.Time {
	return time.Date(1900+int(h.LastUpdateYear), time.Month(h.LastUpdateMonth), int(h.LastUpdateDay), 0, 0, 0, 0, time.UTC)
}

func (h *DBFHeader) setModified(t time.Time) {
	year, month, day := t.Date()
	h.LastUpdateYear = byte(year - 1900)
	h.LastUpdateMonth = byte(month)
	h.LastUpdateDay = byte(day)
}

// HasMemo reports whether the header announces a companion memo file.
func (h *DBFHeader) HasMemo() bool {
	if h.Variant() == VisualFoxPro {
		return hasFlag(h.TableFlags, TableHasMemo)
	}
	return hasFlag(h.Version, versionMemoBit)
}

// FieldDescriptor is the raw 32 byte field descriptor.
type FieldDescriptor struct {
	Name        [11]byte
	Type        byte
	Offset      uint32
	Length      byte
	Decimal     byte
	Flags       byte
	AutoIncNext uint32
	AutoIncStep byte
	Reserved    [8]byte
}
