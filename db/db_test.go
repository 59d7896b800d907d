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

package db

import (
	"context"
	"encoding/json"
	"iter"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-hgi/library-exports/zipper"
)

func createTestDatabase(t *testing.T) *DB {
	t.Helper()

	d, err := Init("sqlite:" + filepath.Join(t.TempDir(), "db"))
	So(err, ShouldBeNil)

	Reset(func() { d.Close() }) //nolint:errcheck

	return d
}

func collectIter[T any](t *testing.T, i *IterErr[T]) []T {
	t.Helper()

	var vs []T

	So(i.ForEach(func(item T) error {
		vs = append(vs, item)

		return nil
	}), ShouldBeNil)

	return vs
}

func collectRecords(t *testing.T, d *DB, id string) []zipper.Record {
	t.Helper()

	var records []zipper.Record

	for r, err := range d.SessionRecords(context.Background(), id) {
		So(err, ShouldBeNil)

		records = append(records, r)
	}

	return records
}

func TestInit(t *testing.T) {
	Convey("Unknown drivers are rejected", t, func() {
		_, err := Init("postgres:somewhere")
		So(err, ShouldNotBeNil)
	})

	Convey("Initialising an existing database keeps its contents", t, func() {
		path := filepath.Join(t.TempDir(), "db")

		d, err := Init("sqlite:" + path)
		So(err, ShouldBeNil)

		s, err := d.CreateSession(time.Hour)
		So(err, ShouldBeNil)
		So(d.Close(), ShouldBeNil)

		d, err = Init("sqlite3:" + path)
		So(err, ShouldBeNil)

		got, err := d.GetSession(s.ID)
		So(err, ShouldBeNil)
		So(got, ShouldResemble, s)
		So(d.Close(), ShouldBeNil)
	})

	Convey("SQLite connections get default pragmas unless already given", t, func() {
		So(sqliteDSN("/tmp/db"), ShouldEqual,
			"/tmp/db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
		So(sqliteDSN("/tmp/db?_pragma=busy_timeout(100)"), ShouldEqual,
			"/tmp/db?_pragma=busy_timeout(100)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
		So(sqliteDSN("/tmp/db?_pragma=JOURNAL_MODE(DELETE)&_pragma=busy_timeout(1)&_pragma=foreign_keys(0)"),
			ShouldEqual, "/tmp/db?_pragma=JOURNAL_MODE(DELETE)&_pragma=busy_timeout(1)&_pragma=foreign_keys(0)")
	})

	Convey("Files can be uploaded while another session is being downloaded", t, func() {
		d, err := Init("sqlite:" + filepath.Join(t.TempDir(), "db"))
		So(err, ShouldBeNil)

		Reset(func() { d.Close() }) //nolint:errcheck

		a, err := d.CreateSession(time.Hour)
		So(err, ShouldBeNil)

		b, err := d.CreateSession(time.Hour)
		So(err, ShouldBeNil)

		for _, name := range []string{"one.txt", "two.txt"} {
			So(d.AddFile(a.ID, &File{Name: name, Data: []byte(name)}), ShouldBeNil)
		}

		next, stop := iter.Pull2(d.SessionRecords(context.Background(), a.ID))
		defer stop()

		r, err, ok := next()
		So(ok, ShouldBeTrue)
		So(err, ShouldBeNil)
		So(r.Name, ShouldEqual, "one.txt")

		f := &File{Name: "three.txt", Data: []byte("three")}
		So(d.AddFile(b.ID, f), ShouldBeNil)
		So(d.MarkDownloaded(b.ID, f.ID), ShouldBeNil)

		got, err := d.GetSession(b.ID)
		So(err, ShouldBeNil)
		So(len(got.Files), ShouldEqual, 1)

		r, err, ok = next()
		So(ok, ShouldBeTrue)
		So(err, ShouldBeNil)
		So(r.Name, ShouldEqual, "two.txt")

		_, _, ok = next()
		So(ok, ShouldBeFalse)
	})
}

func TestFileJSON(t *testing.T) {
	Convey("A file that has not been downloaded has a null download time", t, func() {
		f := &File{ID: 3, Name: "a.txt", Type: "text/plain", Size: 5, Uploaded: 1000, Data: []byte("hello")}

		data, err := json.Marshal(f)
		So(err, ShouldBeNil)
		So(string(data), ShouldEqual,
			`{"id":"3","name":"a.txt","type":"text/plain","size":5,"uploadedAt":1000,"downloadedAt":null}`)

		Convey("and a downloaded one has its time", func() {
			f.Downloaded = 2000

			data, err := json.Marshal(f)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual,
				`{"id":"3","name":"a.txt","type":"text/plain","size":5,"uploadedAt":1000,"downloadedAt":2000}`)

			var decoded File

			So(json.Unmarshal(data, &decoded), ShouldBeNil)
			So(decoded.Downloaded, ShouldEqual, 2000)
			So(decoded.ID, ShouldEqual, 3)
		})
	})
}

func TestSessions(t *testing.T) {
	Convey("Given a print session database", t, func() {
		d := createTestDatabase(t)
		now := time.UnixMilli(1_700_000_000_000)
		d.now = func() time.Time { return now }

		Convey("You can create sessions with unique IDs", func() {
			a, err := d.CreateSession(DefaultSessionTTL)
			So(err, ShouldBeNil)
			So(len(a.ID), ShouldEqual, 36)
			So(a.Created, ShouldEqual, now.UnixMilli())
			So(a.Expires, ShouldEqual, now.Add(DefaultSessionTTL).UnixMilli())
			So(a.Files, ShouldBeEmpty)

			b, err := d.CreateSession(DefaultSessionTTL)
			So(err, ShouldBeNil)
			So(b.ID, ShouldNotEqual, a.ID)

			Convey("…and retrieve them", func() {
				got, err := d.GetSession(a.ID)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, a)

				_, err = d.GetSession("missing")
				So(err, ShouldEqual, ErrSessionNotFound)
			})

			Convey("…and upload files to them", func() {
				first := &File{Name: "essay.pdf", Type: "application/pdf", Data: []byte("%PDF-1.4")}
				So(d.AddFile(a.ID, first), ShouldBeNil)
				So(first.ID, ShouldEqual, 1)
				So(first.Size, ShouldEqual, 8)
				So(first.SessionID, ShouldEqual, a.ID)

				now = now.Add(time.Second)

				second := &File{Name: "photo.jpg", Type: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF}}
				So(d.AddFile(a.ID, second), ShouldBeNil)

				So(d.AddFile("missing", &File{Name: "x"}), ShouldEqual, ErrSessionNotAvailable)

				Convey("…which are listed, without data, in upload order", func() {
					got, err := d.GetSession(a.ID)
					So(err, ShouldBeNil)
					So(len(got.Files), ShouldEqual, 2)
					So(got.Files[0].Name, ShouldEqual, "essay.pdf")
					So(got.Files[0].Data, ShouldBeNil)
					So(got.Files[1].Name, ShouldEqual, "photo.jpg")
					So(got.Files[1].Uploaded, ShouldEqual, now.UnixMilli())

					So(collectIter(t, d.ReadSessionFiles(b.ID)), ShouldBeEmpty)
				})

				Convey("…which can be retrieved with their data", func() {
					f, err := d.GetFile(a.ID, second.ID)
					So(err, ShouldBeNil)
					So(f, ShouldResemble, second)

					_, err = d.GetFile(b.ID, second.ID)
					So(err, ShouldEqual, ErrFileNotFound)
				})

				Convey("…which can be marked as downloaded", func() {
					So(d.MarkDownloaded(a.ID, first.ID), ShouldBeNil)

					f, err := d.GetFile(a.ID, first.ID)
					So(err, ShouldBeNil)
					So(f.Downloaded, ShouldEqual, now.UnixMilli())
				})

				Convey("…which can be read as archive records", func() {
					So(collectRecords(t, d, a.ID), ShouldResemble, []zipper.Record{
						{Name: "essay.pdf", Data: []byte("%PDF-1.4")},
						{Name: "photo.jpg", Data: []byte{0xFF, 0xD8, 0xFF}},
					})
				})

				Convey("…and consume the session, removing its files", func() {
					So(d.ConsumeSession(a.ID), ShouldBeNil)
					So(d.ConsumeSession(a.ID), ShouldEqual, ErrSessionNotAvailable)

					_, err := d.GetFile(a.ID, first.ID)
					So(err, ShouldEqual, ErrFileNotFound)
				})

				Convey("…and mark the session as used", func() {
					So(d.MarkSessionUsed(a.ID), ShouldBeNil)
					So(d.MarkSessionUsed(a.ID), ShouldBeNil)

					got, err := d.GetSession(a.ID)
					So(err, ShouldBeNil)
					So(got.Used, ShouldBeTrue)
				})
			})

			Convey("Expired sessions are removed along with their files", func() {
				So(d.AddFile(a.ID, &File{Name: "a.txt", Data: []byte("a")}), ShouldBeNil)

				now = now.Add(DefaultSessionTTL + time.Millisecond)

				_, err := d.GetSession(a.ID)
				So(err, ShouldEqual, ErrSessionNotFound)
				So(d.AddFile(a.ID, &File{Name: "b.txt"}), ShouldEqual, ErrSessionNotAvailable)

				_, err = d.GetFile(a.ID, 1)
				So(err, ShouldEqual, ErrFileNotFound)
			})

			Convey("Sessions stop accepting files when they expire", func() {
				now = now.Add(DefaultSessionTTL)

				So(d.AddFile(a.ID, &File{Name: "late.txt"}), ShouldEqual, ErrSessionNotAvailable)
			})
		})

		Convey("Archive records have safe, unique names", func() {
			s, err := d.CreateSession(time.Hour)
			So(err, ShouldBeNil)

			for _, name := range []string{"report.pdf", "../../etc/report.pdf", "", `C:\Users\me\report.pdf`, "notes"} {
				So(d.AddFile(s.ID, &File{Name: name, Data: []byte(name)}), ShouldBeNil)
			}

			var names []string

			for _, r := range collectRecords(t, d, s.ID) {
				names = append(names, r.Name)
			}

			So(names, ShouldResemble, []string{"report.pdf", "report (2).pdf", "file-3", "report (3).pdf", "notes"})
		})

		Convey("A cancelled context stops record iteration with an error", func() {
			s, err := d.CreateSession(time.Hour)
			So(err, ShouldBeNil)
			So(d.AddFile(s.ID, &File{Name: "a", Data: []byte("a")}), ShouldBeNil)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			var lastErr error

			for _, err := range d.SessionRecords(ctx, s.ID) {
				lastErr = err
			}

			So(lastErr, ShouldNotBeNil)
		})
	})
}

func TestSafeName(t *testing.T) {
	Convey("SafeName strips directories and control characters", t, func() {
		for name, expected := range map[string]string{
			"a.txt":           "a.txt",
			"dir/a.txt":       "a.txt",
			"/abs/a.txt":      "a.txt",
			"../a.txt":        "a.txt",
			`..\..\a.txt`:     "a.txt",
			"a\x00b\n.txt":    "ab.txt",
			"  spaced.txt  ":  "spaced.txt",
			"":                "file-7",
			".":               "file-7",
			"..":              "file-7",
			"/":               "file-7",
			"dir/..":          "file-7",
			"\x01":            "file-7",
			"รายงาน.xlsx":     "รายงาน.xlsx",
			".hidden":         ".hidden",
			"trailing/slash/": "slash",
		} {
			So(SafeName(name, 7), ShouldEqual, expected)
		}
	})

	Convey("uniqueNames adds suffixes to repeated names", t, func() {
		u := make(uniqueNames)

		So(u.add("a.txt"), ShouldEqual, "a.txt")
		So(u.add("a (2).txt"), ShouldEqual, "a (2).txt")
		So(u.add("a.txt"), ShouldEqual, "a (3).txt")
		So(u.add("b"), ShouldEqual, "b")
		So(u.add("b"), ShouldEqual, "b (2)")
	})
}
