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

package xlsx

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"io"
	"math"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"
)

func readParts(data []byte) ([]string, map[string]string) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	So(err, ShouldBeNil)

	names := make([]string, len(zr.File))
	parts := make(map[string]string, len(zr.File))

	for n, f := range zr.File {
		So(f.Method, ShouldEqual, zip.Store)

		rc, err := f.Open()
		So(err, ShouldBeNil)

		contents, err := io.ReadAll(rc)
		So(err, ShouldBeNil)
		So(rc.Close(), ShouldBeNil)

		names[n] = f.Name
		parts[f.Name] = string(contents)
	}

	return names, parts
}

func wellFormed(doc string) {
	d := xml.NewDecoder(strings.NewReader(doc))

	for {
		_, err := d.Token()
		if err == io.EOF { //nolint:errorlint
			return
		}

		So(err, ShouldBeNil)
	}
}

func openWorkbook(data []byte) *excelize.File {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	So(err, ShouldBeNil)

	Reset(func() { f.Close() }) //nolint:errcheck

	return f
}

func TestColumnLetter(t *testing.T) {
	Convey("Column indexes map to bijective base-26 names", t, func() {
		for index, name := range map[int]string{
			0:     "A",
			1:     "B",
			25:    "Z",
			26:    "AA",
			27:    "AB",
			51:    "AZ",
			52:    "BA",
			701:   "ZZ",
			702:   "AAA",
			16383: "XFD",
		} {
			So(ColumnLetter(index), ShouldEqual, name)
		}

		So(ColumnLetter(-1), ShouldEqual, "")
	})

	Convey("Column names agree with excelize for the first thousand columns", t, func() {
		for index := range 1000 {
			name, err := excelize.ColumnNumberToName(index + 1)
			So(err, ShouldBeNil)
			So(ColumnLetter(index), ShouldEqual, name)
		}
	})

	Convey("Cell references use 1-based rows", t, func() {
		So(CellRef(0, 0), ShouldEqual, "A1")
		So(CellRef(1, 2), ShouldEqual, "C2")
		So(CellRef(99, 26), ShouldEqual, "AA100")
	})
}

func TestBuild(t *testing.T) {
	Convey("Given headers and rows", t, func() {
		data, err := Build([]string{"A", "B"}, [][]any{{1, "x"}, {2, "y"}})
		So(err, ShouldBeNil)

		Convey("The package contains exactly the five parts, stored, in order", func() {
			names, parts := readParts(data)

			So(names, ShouldResemble, []string{
				"[Content_Types].xml",
				"_rels/.rels",
				"xl/workbook.xml",
				"xl/_rels/workbook.xml.rels",
				"xl/worksheets/sheet1.xml",
			})

			for _, part := range parts {
				wellFormed(part)
			}

			So(parts["xl/workbook.xml"], ShouldContainSubstring, `<sheet name="Sheet1" sheetId="1" r:id="rId1"/>`)
			So(parts["xl/_rels/workbook.xml.rels"], ShouldContainSubstring, `Target="worksheets/sheet1.xml"`)
			So(parts["_rels/.rels"], ShouldContainSubstring, `Target="xl/workbook.xml"`)
			So(parts["[Content_Types].xml"], ShouldContainSubstring, `<Override PartName="/xl/worksheets/sheet1.xml"`)
		})

		Convey("The worksheet has one row per input row with typed cells", func() {
			_, parts := readParts(data)

			So(parts["xl/worksheets/sheet1.xml"], ShouldEqual, worksheetOpen+
				`<row r="1">`+
				`<c r="A1" t="inlineStr"><is><t xml:space="preserve">A</t></is></c>`+
				`<c r="B1" t="inlineStr"><is><t xml:space="preserve">B</t></is></c>`+
				`</row>`+
				`<row r="2"><c r="A2"><v>1</v></c>`+
				`<c r="B2" t="inlineStr"><is><t xml:space="preserve">x</t></is></c></row>`+
				`<row r="3"><c r="A3"><v>2</v></c>`+
				`<c r="B3" t="inlineStr"><is><t xml:space="preserve">y</t></is></c></row>`+
				worksheetClose)
		})

		Convey("Spreadsheet software sees a single sheet with the values", func() {
			f := openWorkbook(data)

			So(f.GetSheetList(), ShouldResemble, []string{"Sheet1"})

			rows, err := f.GetRows(SheetName)
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, [][]string{{"A", "B"}, {"1", "x"}, {"2", "y"}})
		})
	})

	Convey("Numbers and numeric-looking strings are typed differently", t, func() {
		data, err := BuildFromRows([][]any{{42, "42"}})
		So(err, ShouldBeNil)

		_, parts := readParts(data)
		sheet := parts["xl/worksheets/sheet1.xml"]

		So(sheet, ShouldContainSubstring, `<c r="A1"><v>42</v></c>`)
		So(sheet, ShouldContainSubstring, `<c r="B1" t="inlineStr"><is><t xml:space="preserve">42</t></is></c>`)
	})

	Convey("Numeric types are formatted as plain numbers", t, func() {
		for value, expected := range map[any]string{
			int8(-3):               "-3",
			uint64(math.MaxUint64): "18446744073709551615",
			float32(1.5):           "1.5",
			1e6:                    "1000000",
			0.25:                   "0.25",
			1e21:                   "1e+21",
			json.Number("12.50"):   "12.5",
		} {
			n, ok := number(value)
			So(ok, ShouldBeTrue)
			So(n, ShouldEqual, expected)
		}

		for _, value := range []any{math.NaN(), math.Inf(1), math.Inf(-1), "1", true, nil, json.Number("x")} {
			_, ok := number(value)
			So(ok, ShouldBeFalse)
		}
	})

	Convey("Non-numeric values are written as escaped text", t, func() {
		original := `<script>&"'`

		data, err := BuildFromRows([][]any{{original, nil, true, math.NaN(), "a\x00b"}})
		So(err, ShouldBeNil)

		_, parts := readParts(data)
		sheet := parts["xl/worksheets/sheet1.xml"]

		wellFormed(sheet)
		So(sheet, ShouldContainSubstring, "&lt;script&gt;&amp;&quot;&apos;")
		So(sheet, ShouldNotContainSubstring, "<script>")

		var ws struct {
			Rows []struct {
				Cells []struct {
					Ref  string `xml:"r,attr"`
					Type string `xml:"t,attr"`
					Text string `xml:"is>t"`
				} `xml:"c"`
			} `xml:"sheetData>row"`
		}

		So(xml.Unmarshal([]byte(sheet), &ws), ShouldBeNil)
		So(len(ws.Rows), ShouldEqual, 1)

		cells := ws.Rows[0].Cells
		So(len(cells), ShouldEqual, 5)
		So(cells[0].Text, ShouldEqual, original)
		So(cells[1].Text, ShouldEqual, "")
		So(cells[2].Text, ShouldEqual, "true")
		So(cells[3].Text, ShouldEqual, "NaN")
		So(cells[4].Text, ShouldEqual, "a�b")

		for _, c := range cells {
			So(c.Type, ShouldEqual, "inlineStr")
		}

		rows, err := openWorkbook(data).GetRows(SheetName)
		So(err, ShouldBeNil)
		So(rows[0][0], ShouldEqual, original)
	})

	Convey("Rows of differing lengths are written as given", t, func() {
		data, err := Build([]string{"a", "b", "c"}, [][]any{{1}, {1, 2, 3, 4}, {}})
		So(err, ShouldBeNil)

		_, parts := readParts(data)
		sheet := parts["xl/worksheets/sheet1.xml"]

		So(sheet, ShouldContainSubstring, `<row r="2"><c r="A2"><v>1</v></c></row>`)
		So(sheet, ShouldContainSubstring, `<c r="D3"><v>4</v></c>`)
		So(sheet, ShouldContainSubstring, `<row r="4"></row>`)
	})

	Convey("An empty sheet is still a valid workbook", t, func() {
		data, err := BuildFromRows(nil)
		So(err, ShouldBeNil)

		f := openWorkbook(data)
		So(f.GetSheetList(), ShouldResemble, []string{"Sheet1"})
	})
}
