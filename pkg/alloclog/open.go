package alloclog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// lz4Ext marks compressed logs by name.
const lz4Ext = ".lz4"

// lz4Magic is the LZ4 frame magic number as it appears on disk.
var lz4Magic = []byte{0x04, 0x22, 0x4d, 0x18}

// readCloser pairs a decoding reader with the file underneath it.
type readCloser struct {
	io.Reader
	closer io.Closer
}

func (rc readCloser) Close() error {
	return rc.closer.Close()
}

// Open opens the log at path. LZ4-framed logs, detected by the ".lz4"
// extension or the frame magic, are decompressed on the fly.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	buffered := bufio.NewReader(f)

	if strings.HasSuffix(path, lz4Ext) || hasLZ4Magic(buffered) {
		return readCloser{Reader: lz4.NewReader(buffered), closer: f}, nil
	}

	return readCloser{Reader: buffered, closer: f}, nil
}

func hasLZ4Magic(r *bufio.Reader) bool {
	head, err := r.Peek(len(lz4Magic))
	if err != nil {
		return false
	}

	return bytes.Equal(head, lz4Magic)
}

// Load opens and parses the log at path.
func Load(path string) (events []Event, err error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}

	defer func() {
		err = errors.Join(err, rc.Close())
	}()

	events, err = Parse(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return events, nil
}
