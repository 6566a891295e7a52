package entry

import (
	"bufio"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// scanSegment walks a segment's frames and returns the highest seq found
// and the offset just past the last intact frame. A torn or corrupt tail
// ends the scan without error.
func scanSegment(path string) (maxSeq uint64, good int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		rec, err := readRecord(r)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF || errors.Is(err, ErrCorrupt) {
				return maxSeq, good, nil
			}
			return maxSeq, good, err
		}
		if rec.Seq > maxSeq {
			maxSeq = rec.Seq
		}
		good += rec.size()
	}
}
