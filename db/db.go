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

// Package db stores print sessions: short-lived drop boxes that students
// upload files to from their own devices, to be collected and printed from
// the library.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" //
	_ "modernc.org/sqlite"             //
)

var (
	ErrSessionNotFound     = errors.New("session_not_found")
	ErrSessionNotAvailable = errors.New("session_not_available")
	ErrFileNotFound        = errors.New("file_not_found")
)

type DBRO struct { //nolint:revive
	db  *sql.DB
	now func() time.Time
}

type DB struct {
	DBRO
}

// Init connects to a print session database given a connection string,
// creating the tables if needed.
//
// Eg:
//
//	sqlite:some/path/db.sqlite
//	mysql:user:password@tcp(host:port)/dbname
//
// SQLite databases are opened in WAL mode with a busy timeout and foreign keys
// enabled, unless the connection string sets those pragmas itself, so that
// uploads are not locked out while a download is reading files.
func Init(connection string) (*DB, error) {
	driver := "sqlite"

	protocol, uri, _ := strings.Cut(connection, ":")
	switch protocol {
	case "sqlite", "sqlite3":
		uri = sqliteDSN(uri)
	case "mysql":
		driver = "mysql"
	default:
		return nil, fmt.Errorf("unrecognised db driver: %s", protocol) //nolint:err113
	}

	db, err := sql.Open(driver, uri)
	if err != nil {
		return nil, err
	}

	d := &DB{
		DBRO: DBRO{db: db, now: time.Now},
	}

	if err = d.initTables(); err != nil {
		return nil, err
	}

	return d, nil
}

var sqlitePragmas = [...][2]string{ //nolint:gochecknoglobals
	{"journal_mode", "WAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "1"},
}

// sqliteDSN adds the default pragmas to a sqlite path, keeping any given in
// its query string.
func sqliteDSN(uri string) string {
	path, query, _ := strings.Cut(uri, "?")
	values, _ := url.ParseQuery(query) //nolint:errcheck

	given := make(map[string]bool)

	for _, pragma := range values["_pragma"] {
		name, _, _ := strings.Cut(pragma, "(")
		given[strings.ToLower(strings.TrimSpace(name))] = true
	}

	params := []string{}

	if query != "" {
		params = append(params, query)
	}

	for _, p := range sqlitePragmas {
		if !given[p[0]] {
			params = append(params, "_pragma="+p[0]+"("+p[1]+")")
		}
	}

	return path + "?" + strings.Join(params, "&")
}

func (d *DB) initTables() error {
	for n, table := range tables {
		var exists int

		if err := d.db.QueryRow(tableCheck, tableNames[n]).Scan(&exists); err != nil { //nolint:noctx
			return err
		}

		if exists != 0 {
			continue
		}

		if _, err := d.db.Exec(table); err != nil { //nolint:noctx
			return err
		}
	}

	return nil
}

func (d *DB) exec(sql string, params ...any) (int64, error) {
	tx, err := d.db.Begin() //nolint:noctx
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(sql, params...) //nolint:noctx
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return affected, tx.Commit()
}

// removeExpired deletes all sessions, and their files, whose time has passed.
func (d *DB) removeExpired() error {
	tx, err := d.db.Begin() //nolint:noctx
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err = tx.Exec(deleteExpiredSessions, d.now().UnixMilli()); err != nil { //nolint:noctx
		return err
	}

	if _, err = tx.Exec(deleteOrphanedFiles); err != nil { //nolint:noctx
		return err
	}

	return tx.Commit()
}

// Close closes the database connection.
func (d *DBRO) Close() error {
	return d.db.Close()
}
