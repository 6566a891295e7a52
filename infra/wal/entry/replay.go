package entry

import (
	"bufio"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

type ReplayHandler func(*Record) error

// Replay feeds every record in dir to fn, oldest first, and returns the
// last seq seen. Seqs must strictly increase across the whole journal. A
// torn frame at the very end of the newest segment is a crash artifact
// and ends the replay cleanly; anywhere else it is an error.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	segs, err := listSegments(dir)
	if err != nil {
		return 0, errors.Wrap(err, "journal: list segments")
	}

	for i, s := range segs {
		tail := i == len(segs)-1
		if lastSeq, err = replaySegment(s.path, tail, lastSeq, fn); err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

func replaySegment(path string, tail bool, lastSeq uint64, fn ReplayHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, errors.Wrapf(err, "journal: open %s", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		rec, err := readRecord(r)
		switch {
		case err == io.EOF:
			return lastSeq, nil
		case tail && (err == io.ErrUnexpectedEOF || errors.Is(err, ErrCorrupt)):
			return lastSeq, nil
		case err == io.ErrUnexpectedEOF:
			return lastSeq, errors.Wrapf(ErrCorrupt, "%s: truncated frame after seq %d", path, lastSeq)
		case err != nil:
			return lastSeq, errors.Wrapf(err, "journal: read %s", path)
		}

		if rec.Seq <= lastSeq {
			return lastSeq, errors.Wrapf(ErrNonMonotonic, "seq %d after %d in %s", rec.Seq, lastSeq, path)
		}
		lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}
