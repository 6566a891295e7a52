package entry

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"time"

	"github.com/cockroachdb/errors"
)

// RecordType tags the command a journal record carries.
type RecordType uint8

const (
	RecordAdd RecordType = iota + 1
	RecordCancel
)

func (t RecordType) String() string {
	switch t {
	case RecordAdd:
		return "add"
	case RecordCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Record is one sequenced command. Seq is the book token the command was
// applied with.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

var ErrCorrupt = errors.New("journal: corrupt record")

// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4]
// The crc covers header and payload.
const (
	headerSize  = 1 + 8 + 8 + 4
	trailerSize = 4

	// MaxPayload bounds a single command payload. A header claiming more
	// is treated as corrupt before anything is allocated for it.
	MaxPayload = 1 << 20
)

var ErrTooLarge = errors.New("journal: payload too large")

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func (r *Record) size() int64 {
	return int64(headerSize + len(r.Data) + trailerSize)
}

func (r *Record) marshal() []byte {
	n := len(r.Data)
	buf := make([]byte, headerSize+n+trailerSize)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], uint32(n))
	copy(buf[headerSize:], r.Data)

	sum := crc32.Checksum(buf[:headerSize+n], castagnoli)
	binary.BigEndian.PutUint32(buf[headerSize+n:], sum)
	return buf
}

// readRecord reads one frame. A clean end of input is io.EOF; a frame cut
// short is io.ErrUnexpectedEOF.
func readRecord(r io.Reader) (*Record, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	n := binary.BigEndian.Uint32(header[17:21])
	if n > MaxPayload {
		return nil, errors.Wrapf(ErrCorrupt, "seq %d: length %d", binary.BigEndian.Uint64(header[1:9]), n)
	}
	body := make([]byte, int(n)+trailerSize)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	payload := body[:n]
	h := crc32.New(castagnoli)
	_, _ = h.Write(header[:])
	_, _ = h.Write(payload)
	if h.Sum32() != binary.BigEndian.Uint32(body[n:]) {
		return nil, errors.Wrapf(ErrCorrupt, "seq %d", binary.BigEndian.Uint64(header[1:9]))
	}

	return &Record{
		Type: RecordType(header[0]),
		Seq:  binary.BigEndian.Uint64(header[1:9]),
		Time: int64(binary.BigEndian.Uint64(header[9:17])),
		Data: payload,
	}, nil
}
