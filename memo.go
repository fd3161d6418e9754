package dbf

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type memoFormat int

const (
	memoDBase3 memoFormat = iota
	memoDBase4
	memoFoxPro
)

func (m memoFormat) String() string {
	switch m {
	case memoDBase4:
		return "dbt4"
	case memoFoxPro:
		return "fpt"
	default:
		return "dbt3"
	}
}

const (
	memoHeaderSize       = 512
	defaultMemoBlockSize = 512
)

var dBase4BlockMarker = []byte{0xFF, 0xFF, 0x08, 0x00}

// memoFile resolves block references against a .dbt or .fpt companion file.
// All reads are positional.
type memoFile struct {
	r         io.ReaderAt
	c         io.Closer
	size      int64
	format    memoFormat
	blockSize uint32
	nextFree  uint32
}

// memoCandidates lists the companion names tried for a table, in order.
func memoCandidates(tablePath string, version byte) []string {
	base := strings.TrimSuffix(tablePath, filepath.Ext(tablePath))
	dbt := []string{base + ".dbt", base + ".DBT"}
	fpt := []string{base + ".fpt", base + ".FPT"}
	if variantOf(version) == VisualFoxPro || version == VersionFoxPro2Memo {
		return append(fpt, dbt...)
	}
	return append(dbt, fpt...)
}

// openMemo opens the companion memo file of a table. It returns nil when
// none exists.
func openMemo(tablePath string, version byte) (*memoFile, error) {
	for _, name := range memoCandidates(tablePath, version) {
		f, err := os.Open(name)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		st, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		format := memoDBase3
		switch {
		case strings.EqualFold(filepath.Ext(name), ".fpt"):
			format = memoFoxPro
		case hasFlag(version, versionDBase4MemoBits):
			format = memoDBase4
		}
		m, err := newMemoFile(f, st.Size(), format)
		if err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, name)
		}
		m.c = f
		return m, nil
	}
	return nil, nil
}

func newMemoFile(r io.ReaderAt, size int64, format memoFormat) (*memoFile, error) {
	m := &memoFile{r: r, size: size, format: format, blockSize: defaultMemoBlockSize}
	head := make([]byte, 22)
	if n, err := r.ReadAt(head, 0); n < 8 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, ioError("read memo header", 0, err)
	}
	switch format {
	case memoFoxPro:
		m.nextFree = binary.BigEndian.Uint32(head[0:4])
		m.blockSize = uint32(binary.BigEndian.Uint16(head[6:8]))
	case memoDBase4:
		m.nextFree = binary.LittleEndian.Uint32(head[0:4])
		if size >= 22 {
			m.blockSize = uint32(binary.LittleEndian.Uint16(head[20:22]))
		}
	default:
		m.nextFree = binary.LittleEndian.Uint32(head[0:4])
	}
	if m.blockSize == 0 {
		m.blockSize = defaultMemoBlockSize
	}
	return m, nil
}

func (m *memoFile) firstBlock() uint32 {
	return (memoHeaderSize + m.blockSize - 1) / m.blockSize
}

func (m *memoFile) Close() error {
	if m.c == nil {
		return nil
	}
	return m.c.Close()
}

func invalidMemo(block uint32, format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidMemoReference, "block %d: "+format, append([]interface{}{block}, args...)...)
}

// read returns the content stored at block.
func (m *memoFile) read(block uint32) ([]byte, error) {
	if block < m.firstBlock() {
		return nil, invalidMemo(block, "inside the memo header")
	}
	if m.nextFree != 0 && block >= m.nextFree {
		return nil, invalidMemo(block, "next free block is %d", m.nextFree)
	}
	off := int64(block) * int64(m.blockSize)
	if off >= m.size {
		return nil, invalidMemo(block, "beyond memo file end")
	}
	switch m.format {
	case memoFoxPro:
		return m.readFoxPro(block, off)
	case memoDBase4:
		return m.readDBase4(block, off)
	default:
		return m.readTerminated(off)
	}
}

func (m *memoFile) readFoxPro(block uint32, off int64) ([]byte, error) {
	head := make([]byte, 8)
	if _, err := m.r.ReadAt(head, off); err != nil {
		return nil, invalidMemo(block, "block header: %v", err)
	}
	length := int64(binary.BigEndian.Uint32(head[4:8]))
	if off+8+length > m.size {
		return nil, invalidMemo(block, "length %d runs past memo file end", length)
	}
	data := make([]byte, length)
	if _, err := m.r.ReadAt(data, off+8); err != nil {
		return nil, ioError("read memo", off+8, err)
	}
	return data, nil
}

func (m *memoFile) readDBase4(block uint32, off int64) ([]byte, error) {
	head := make([]byte, 8)
	if _, err := m.r.ReadAt(head, off); err != nil || !bytes.Equal(head[:4], dBase4BlockMarker) {
		return m.readTerminated(off)
	}
	length := int64(binary.LittleEndian.Uint32(head[4:8]))
	if length < 8 || off+length > m.size {
		return nil, invalidMemo(block, "length %d", length)
	}
	data := make([]byte, length-8)
	if _, err := m.r.ReadAt(data, off+8); err != nil {
		return nil, ioError("read memo", off+8, err)
	}
	return data, nil
}

// readTerminated reads block-sized chunks until the 0x1A terminator or the
// end of the file.
func (m *memoFile) readTerminated(off int64) ([]byte, error) {
	var out []byte
	chunk := make([]byte, m.blockSize)
	for off < m.size {
		n, err := m.r.ReadAt(chunk, off)
		if i := bytes.IndexByte(chunk[:n], EOF); i >= 0 {
			return append(out, chunk[:i]...), nil
		}
		out = append(out, chunk[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ioError("read memo", off, err)
		}
		off += int64(n)
	}
	return out, nil
}
