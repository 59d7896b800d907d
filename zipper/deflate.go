package zipper

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/flate"
)

var flateWriters = sync.Pool{ //nolint:gochecknoglobals
	New: func() any {
		fw, _ := flate.NewWriter(nil, flate.DefaultCompression) //nolint:errcheck

		return fw
	},
}

// deflate compresses data with raw DEFLATE, without any zlib or gzip framing.
func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	fw := flateWriters.Get().(*flate.Writer) //nolint:errcheck,forcetypeassert
	defer flateWriters.Put(fw)

	fw.Reset(&buf)

	if _, err := fw.Write(data); err != nil {
		return nil, err
	}

	if err := fw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
