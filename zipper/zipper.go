/*******************************************************************************
 * Copyright (c) 2025 Genome Research Ltd.
 *
 * Author: Michael Woolnough <mw31@sanger.ac.uk>
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

// Package zipper writes ZIP archives from in-memory records, either storing
// each record as-is or compressing it with raw DEFLATE.
//
// Archives are written in a single pass: each entry's local header, name and
// data are emitted as soon as the entry is written, and only the central
// directory and end-of-central-directory record are deferred until Close. No
// timestamps, extra fields, comments or ZIP64 records are written.
package zipper

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wtsi-hgi/library-exports/checksum"
	"vimagination.zapto.org/byteio"
)

// ContentType is the MIME type of a ZIP archive.
const ContentType = "application/zip"

// Method is a ZIP compression method.
type Method uint16

// The supported compression methods.
const (
	Store   Method = 0
	Deflate Method = 8
)

const (
	localHeaderSignature   = 0x04034B50
	centralHeaderSignature = 0x02014B50
	endOfCentralSignature  = 0x06054B50

	localHeaderSize   = 30
	centralHeaderSize = 46
	endOfCentralSize  = 22

	zipVersion = 20

	maxEntries = math.MaxUint16
	maxName    = math.MaxUint16
	maxSize    = math.MaxUint32
)

var (
	ErrEmptyName = errors.New("zip entry name must not be empty")
	ErrTooLarge  = errors.New("zip archive exceeds 32-bit limits")
	ErrAborted   = errors.New("zip archive aborted")
	ErrClosed    = errors.New("zip writer closed")
	ErrMethod    = errors.New("unsupported compression method")
)

// Record is a named blob of data to be added to an archive.
type Record struct {
	Name string
	Data []byte
}

// localEntry is the per-record state computed before an entry is written.
type localEntry struct {
	name             []byte
	method           Method
	crc              uint32
	uncompressedSize uint64
	data             []byte
}

func prepare(r Record, m Method) (*localEntry, error) {
	if r.Name == "" {
		return nil, ErrEmptyName
	}

	e := &localEntry{
		name:             []byte(r.Name),
		method:           m,
		crc:              checksum.Checksum(r.Data),
		uncompressedSize: uint64(len(r.Data)),
		data:             r.Data,
	}

	switch m {
	case Store:
	case Deflate:
		data, err := deflate(r.Data)
		if err != nil {
			return nil, fmt.Errorf("error compressing %q: %w", r.Name, err)
		}

		e.data = data
	default:
		return nil, fmt.Errorf("%w: %d", ErrMethod, m)
	}

	if len(e.name) > maxName || e.uncompressedSize > maxSize || uint64(len(e.data)) > maxSize {
		return nil, fmt.Errorf("%w: entry %q", ErrTooLarge, r.Name)
	}

	return e, nil
}

// directory is the running state of an archive: the offset at which the next
// local header will start, and the central directory records of all entries
// written so far.
type directory struct {
	offset  uint64
	count   int
	central bytes.Buffer
}

// step appends the central directory record for e, which is to be written at
// the current offset, and advances the offset past the local entry.
func (d *directory) step(e *localEntry) error {
	if d.count >= maxEntries {
		return fmt.Errorf("%w: more than %d entries", ErrTooLarge, maxEntries)
	}

	localHeaderOffset := d.offset
	if localHeaderOffset > maxSize {
		return fmt.Errorf("%w: local header offset %d", ErrTooLarge, localHeaderOffset)
	}

	cw := byteio.StickyLittleEndianWriter{Writer: &d.central}

	cw.WriteUint32(centralHeaderSignature)     // Central directory file header
	cw.WriteUint16(zipVersion)                 // Version made by
	cw.WriteUint16(zipVersion)                 // Version needed
	cw.WriteUint16(0)                          // General purpose flags
	cw.WriteUint16(uint16(e.method))           // Compression method
	cw.WriteUint32(0)                          // Modified time/date
	cw.WriteUint32(e.crc)                      // CRC
	cw.WriteUint32(uint32(len(e.data)))        // Compressed size
	cw.WriteUint32(uint32(e.uncompressedSize)) // Uncompressed size
	cw.WriteUint16(uint16(len(e.name)))        // Name length
	cw.WriteUint16(0)                          // Extra field length
	cw.WriteUint16(0)                          // Comment length
	cw.WriteUint16(0)                          // Disk number
	cw.WriteUint16(0)                          // Internal attributes
	cw.WriteUint32(0)                          // External attributes
	cw.WriteUint32(uint32(localHeaderOffset))  // Local header offset
	cw.Write(e.name)                           //nolint:errcheck

	if cw.Err != nil {
		return cw.Err
	}

	d.offset += localHeaderSize + uint64(len(e.name)) + uint64(len(e.data))
	d.count++

	return nil
}

// Writer streams a ZIP archive to an underlying io.Writer.
type Writer struct {
	sw     byteio.StickyLittleEndianWriter
	method Method
	dir    directory
	err    error
	closed bool
}

// NewWriter returns a Writer that writes an archive to w, compressing entries
// with the given method.
func NewWriter(w io.Writer, m Method) *Writer {
	return &Writer{
		sw:     byteio.StickyLittleEndianWriter{Writer: w},
		method: m,
	}
}

// Method returns the compression method used for entries.
func (w *Writer) Method() Method {
	return w.method
}

// Entries returns the number of entries written so far.
func (w *Writer) Entries() int {
	return w.dir.count
}

// Write adds the record to the archive, writing its local header and data
// immediately.
//
// Records that cannot be encoded (ErrEmptyName, ErrTooLarge for a single
// entry) are rejected before anything is written and leave the Writer usable.
// Any other error is sticky.
func (w *Writer) Write(r Record) error {
	if err := w.usable(); err != nil {
		return err
	}

	e, err := prepare(r, w.method)
	if err != nil {
		return err
	}

	return w.writeEntry(e)
}

func (w *Writer) usable() error {
	if w.err != nil {
		return w.err
	}

	if w.closed {
		return ErrClosed
	}

	return nil
}

func (w *Writer) writeEntry(e *localEntry) error {
	if err := w.usable(); err != nil {
		return err
	}

	if err := w.dir.step(e); err != nil {
		if !errors.Is(err, ErrTooLarge) {
			w.err = err
		}

		return err
	}

	w.sw.WriteUint32(localHeaderSignature)       // Local file header
	w.sw.WriteUint16(zipVersion)                 // Version needed
	w.sw.WriteUint16(0)                          // General purpose flags
	w.sw.WriteUint16(uint16(e.method))           // Compression method
	w.sw.WriteUint32(0)                          // Modified time/date
	w.sw.WriteUint32(e.crc)                      // CRC
	w.sw.WriteUint32(uint32(len(e.data)))        // Compressed size
	w.sw.WriteUint32(uint32(e.uncompressedSize)) // Uncompressed size
	w.sw.WriteUint16(uint16(len(e.name)))        // Name length
	w.sw.WriteUint16(0)                          // Extra field length
	w.sw.Write(e.name)                           //nolint:errcheck
	w.sw.Write(e.data)                           //nolint:errcheck

	if w.sw.Err != nil {
		w.err = w.sw.Err
	}

	return w.err
}

// Abort marks the archive as failed. No central directory will be written,
// so the partial output cannot be mistaken for a complete archive; all
// subsequent calls return an error wrapping both ErrAborted and err.
func (w *Writer) Abort(err error) {
	if w.closed || w.err != nil {
		return
	}

	if err == nil {
		w.err = ErrAborted
	} else {
		w.err = fmt.Errorf("%w: %w", ErrAborted, err)
	}
}

// Close writes the central directory and end-of-central-directory record.
// It does not close the underlying io.Writer.
func (w *Writer) Close() error {
	if err := w.usable(); err != nil {
		return err
	}

	w.closed = true

	centralOffset := w.dir.offset
	centralSize := uint64(w.dir.central.Len())

	if centralOffset > maxSize || centralSize > maxSize {
		w.err = fmt.Errorf("%w: central directory at %d, size %d", ErrTooLarge, centralOffset, centralSize)

		return w.err
	}

	w.sw.Write(w.dir.central.Bytes()) //nolint:errcheck

	w.sw.WriteUint32(endOfCentralSignature) // End of central directory
	w.sw.WriteUint16(0)                     // Disk number
	w.sw.WriteUint16(0)                     // Central directory disk
	w.sw.WriteUint16(uint16(w.dir.count))   // Entries on this disk
	w.sw.WriteUint16(uint16(w.dir.count))   // Total entries
	w.sw.WriteUint32(uint32(centralSize))   // Central directory size
	w.sw.WriteUint32(uint32(centralOffset)) // Central directory offset
	w.sw.WriteUint16(0)                     // Comment length

	w.err = w.sw.Err

	return w.err
}

// Build returns a complete archive containing the given records in order.
//
// An empty slice of records produces a valid archive with no entries.
func Build(records []Record, m Method) ([]byte, error) {
	var buf bytes.Buffer

	w := NewWriter(&buf, m)

	for _, r := range records {
		if err := w.Write(r); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
