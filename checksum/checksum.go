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

// Package checksum implements the CRC-32 used by ZIP, gzip and PNG: the
// reflected form of polynomial 0x04C11DB7 (0xEDB88320), with an initial value
// of 0xFFFFFFFF and a final inversion.
package checksum

import (
	"hash"
	"sync"
)

const (
	polynomial = 0xEDB88320
	tableSize  = 256

	// Size is the size of a CRC-32 checksum in bytes.
	Size = 4
)

type table [tableSize]uint32

// crcTable is built on first use and never written to afterwards.
var crcTable = sync.OnceValue(func() *table { //nolint:gochecknoglobals
	var t table

	for i := range uint32(tableSize) {
		c := i

		for range 8 {
			if c&1 == 1 {
				c = polynomial ^ (c >> 1)
			} else {
				c >>= 1
			}
		}

		t[i] = c
	}

	return &t
})

// Checksum returns the CRC-32 of data.
func Checksum(data []byte) uint32 {
	return Update(0, data)
}

// Update returns the result of adding the bytes in data to the crc, which
// should be the result of a previous Checksum or Update call, or 0 to start a
// new checksum.
func Update(crc uint32, data []byte) uint32 {
	t := crcTable()
	acc := ^crc

	for _, b := range data {
		acc = t[byte(acc)^b] ^ (acc >> 8)
	}

	return ^acc
}

type digest struct {
	crc uint32
}

// New creates a new hash.Hash32 computing the CRC-32 checksum. Its Sum method
// lays the value out in big-endian byte order.
func New() hash.Hash32 {
	return new(digest)
}

func (d *digest) Size() int { return Size }

func (d *digest) BlockSize() int { return 1 }

func (d *digest) Reset() { d.crc = 0 }

func (d *digest) Write(p []byte) (int, error) {
	d.crc = Update(d.crc, p)

	return len(p), nil
}

func (d *digest) Sum32() uint32 { return d.crc }

func (d *digest) Sum(in []byte) []byte {
	s := d.Sum32()

	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s)) //nolint:mnd
}
