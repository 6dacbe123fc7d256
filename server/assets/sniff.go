package assets

import (
	"bufio"
	"fmt"
	"io"
	"net/http"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
)

// sniffLen is the number of bytes http.DetectContentType looks at.
const sniffLen = 512

// ErrTooLarge is returned when a stream is longer than allowed.
type ErrTooLarge struct {
	Max int64
}

func (err ErrTooLarge) StatusCode() int {
	return http.StatusRequestEntityTooLarge
}

func (err ErrTooLarge) Error() string {
	return fmt.Sprintf(
		"too large, maximum size allowed is %s",
		datasize.ByteSize(err.Max).HumanReadable(),
	)
}

// ErrUnsupportedType is returned when the sniffed content type of a file is
// not allowed.
type ErrUnsupportedType struct {
	ContentType string
}

func (err ErrUnsupportedType) StatusCode() int {
	return http.StatusUnsupportedMediaType
}

func (err ErrUnsupportedType) Error() string {
	return "unsupported file type " + err.ContentType
}

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Extension returns the file extension for the given image content type.
func Extension(ctype string) (string, bool) {
	ext, ok := extensions[ctype]
	return ext, ok
}

// Reader ensures that Read calls will read the complete stream even after
// sniffing. Reads wrapped in Reader are inherently buffered.
type Reader struct {
	*bufio.Reader
	ctype string
	empty bool
}

// Sniff wraps r in a reader that is limited to max bytes and detects the
// content type from its head. An empty stream is not an error; check Empty.
func Sniff(r io.Reader, max int64) (*Reader, error) {
	buf := bufio.NewReaderSize(NewLimitedReader(r, max), sniffLen)

	h, err := buf.Peek(sniffLen)
	if err != nil && err != io.EOF {
		// Peek returns the error that the limited reader gave us, so a
		// truncated or oversized stream is reported here.
		return nil, errors.Wrap(err, "Failed to peek")
	}

	var sniffed = Reader{
		Reader: buf,
		empty:  len(h) == 0,
	}

	if !sniffed.empty {
		sniffed.ctype = http.DetectContentType(h)
	}

	return &sniffed, nil
}

// ContentType returns the sniffed content type, or an empty string if the
// stream is empty.
func (r *Reader) ContentType() string {
	return r.ctype
}

// Empty returns true if the stream had no bytes at all.
func (r *Reader) Empty() bool {
	return r.empty
}

// LimitedReader is a reader that errors out with ErrTooLarge once more than
// the maximum number of bytes have been read.
type LimitedReader struct {
	reader io.LimitedReader
	max    int64
}

// NewLimitedReader creates a new LimitedReader. A max of 0 or less disables the
// limit.
func NewLimitedReader(r io.Reader, max int64) io.Reader {
	if max <= 0 {
		return r
	}

	return &LimitedReader{
		reader: io.LimitedReader{R: r, N: max + 1},
		max:    max,
	}
}

func (r *LimitedReader) Read(b []byte) (int, error) {
	n, err := r.reader.Read(b)

	if r.reader.N <= 0 {
		return n, ErrTooLarge{Max: r.max}
	}

	return n, err
}
