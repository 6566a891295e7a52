package exit

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/errors"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Record is one outbox entry: an encoded event and its delivery state.
type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// Cursor marks how far the outbox has caught up with the book: Token is
// the last book call whose events are committed and Seq the last event
// seq handed out. It survives DeleteAcked.
type Cursor struct {
	Token uint64
	Seq   uint64
}

const cursorKey = "meta/cursor"

func (c Cursor) encode() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], c.Token)
	binary.BigEndian.PutUint64(buf[8:16], c.Seq)
	return buf
}

func decodeCursor(b []byte) (Cursor, error) {
	if len(b) != 16 {
		return Cursor{}, errors.Newf("outbox: bad cursor length %d", len(b))
	}
	return Cursor{
		Token: binary.BigEndian.Uint64(b[0:8]),
		Seq:   binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

const (
	keyPrefix  = "event/"
	metaSize   = 1 + 4 + 8
	keyDigits  = 20
	keyUpperCh = "~"
)

// value: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r Record) []byte {
	buf := make([]byte, metaSize+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[metaSize:], r.Payload)
	return buf
}

// decodeRecord copies out of b; pebble owns the slice it hands back.
func decodeRecord(seq uint64, b []byte) (Record, error) {
	if len(b) < metaSize {
		return Record{}, errors.Newf("outbox: record %d too short (%d bytes)", seq, len(b))
	}
	return Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[metaSize:]...),
	}, nil
}

// Keys are zero padded so pebble's byte order is seq order.
func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%0*d", keyPrefix, keyDigits, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	if _, err := fmt.Sscanf(string(b), keyPrefix+"%d", &seq); err != nil {
		return 0, errors.Wrapf(err, "outbox: bad key %q", b)
	}
	return seq, nil
}
