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

// Package xlsx writes minimal single-sheet OOXML spreadsheets.
//
// Cells are either numbers or inline strings; no shared strings table,
// styles, formulae or merged cells are written.
package xlsx

import (
	"bytes"
	"io"
	"slices"
	"strconv"

	"github.com/wtsi-hgi/library-exports/zipper"
)

const (
	// ContentType is the MIME type of an xlsx workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// SheetName is the name of the only sheet in a workbook.
	SheetName = "Sheet1"

	letters = 26
)

const (
	contentTypesPath = "[Content_Types].xml"
	rootRelsPath     = "_rels/.rels"
	workbookPath     = "xl/workbook.xml"
	workbookRelsPath = "xl/_rels/workbook.xml.rels"
	worksheetPath    = "xl/worksheets/sheet1.xml"

	xmlDeclaration = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`

	relationshipsOpen = xmlDeclaration +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`

	relationshipsClose = `</Relationships>`

	contentTypes = xmlDeclaration +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/xl/workbook.xml" ` +
		`ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>` +
		`<Override PartName="/xl/worksheets/sheet1.xml" ` +
		`ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>` +
		`</Types>`

	rootRels = relationshipsOpen +
		`<Relationship Id="rId1" ` +
		`Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" ` +
		`Target="xl/workbook.xml"/>` +
		relationshipsClose

	workbook = xmlDeclaration +
		`<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
		`<sheets><sheet name="` + SheetName + `" sheetId="1" r:id="rId1"/></sheets></workbook>`

	workbookRels = relationshipsOpen +
		`<Relationship Id="rId1" ` +
		`Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" ` +
		`Target="worksheets/sheet1.xml"/>` +
		relationshipsClose

	worksheetOpen = xmlDeclaration +
		`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>`
	worksheetClose = `</sheetData></worksheet>`
)

// ColumnLetter converts a 0-based column index to its spreadsheet name: 0 is
// "A", 25 is "Z", 26 is "AA" and so on. Negative indexes have no name.
func ColumnLetter(index int) string {
	var name []byte

	for i := index; i >= 0; i = i/letters - 1 {
		name = append(name, byte('A'+i%letters))
	}

	slices.Reverse(name)

	return string(name)
}

// CellRef returns the reference of the cell at the given 0-based row and
// column, eg. CellRef(0, 0) is "A1".
func CellRef(row, col int) string {
	return ColumnLetter(col) + strconv.Itoa(row+1)
}

// Write writes a workbook to w whose only sheet has headers as its first row,
// followed by rows.
//
// Finite numeric values become number cells; every other value is formatted
// with fmt.Sprint and written as an inline string.
func Write(w io.Writer, headers []string, rows [][]any) error {
	header := make([]any, len(headers))

	for n, h := range headers {
		header[n] = h
	}

	return WriteRows(w, append([][]any{header}, rows...))
}

// WriteRows writes a workbook to w whose only sheet contains exactly the given
// rows.
func WriteRows(w io.Writer, rows [][]any) error {
	zw := zipper.NewWriter(w, zipper.Store)

	for _, part := range [...]zipper.Record{
		{Name: contentTypesPath, Data: []byte(contentTypes)},
		{Name: rootRelsPath, Data: []byte(rootRels)},
		{Name: workbookPath, Data: []byte(workbook)},
		{Name: workbookRelsPath, Data: []byte(workbookRels)},
		{Name: worksheetPath, Data: worksheet(rows)},
	} {
		if err := zw.Write(part); err != nil {
			return err
		}
	}

	return zw.Close()
}

// Build returns the bytes of a workbook as written by Write.
func Build(headers []string, rows [][]any) ([]byte, error) {
	var buf bytes.Buffer

	if err := Write(&buf, headers, rows); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// BuildFromRows returns the bytes of a workbook as written by WriteRows.
func BuildFromRows(rows [][]any) ([]byte, error) {
	var buf bytes.Buffer

	if err := WriteRows(&buf, rows); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func worksheet(rows [][]any) []byte {
	var buf bytes.Buffer

	buf.WriteString(worksheetOpen)

	for r, row := range rows {
		buf.WriteString(`<row r="`)
		buf.WriteString(strconv.Itoa(r + 1))
		buf.WriteString(`">`)

		for c, value := range row {
			writeCell(&buf, CellRef(r, c), value)
		}

		buf.WriteString(`</row>`)
	}

	buf.WriteString(worksheetClose)

	return buf.Bytes()
}
