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
	"database/sql"
	"encoding/json"
	"errors"
	"iter"

	"github.com/wtsi-hgi/library-exports/zipper"
)

// File is a file uploaded to a print session. Times are in milliseconds since
// the Unix epoch; a zero Downloaded time means the file has not been
// downloaded.
type File struct {
	ID         int64  `json:"id,string"`
	SessionID  string `json:"-"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	Uploaded   int64  `json:"uploadedAt"`
	Downloaded int64  `json:"downloadedAt"`
	Data       []byte `json:"-"`
}

// MarshalJSON encodes the file's details, with a null downloadedAt for a file
// that has not been downloaded.
func (f *File) MarshalJSON() ([]byte, error) {
	type file File

	var downloaded *int64

	if f.Downloaded != 0 {
		downloaded = &f.Downloaded
	}

	return json.Marshal(struct {
		*file
		Downloaded *int64 `json:"downloadedAt"`
	}{
		file:       (*file)(f),
		Downloaded: downloaded,
	})
}

// AddFile stores the given file in the session with the given ID, setting
// the file's ID, SessionID, Size and Uploaded fields.
//
// Returns ErrSessionNotAvailable if the session does not exist or has
// expired.
func (d *DB) AddFile(sessionID string, f *File) error {
	if _, err := d.available(sessionID); err != nil {
		return err
	}

	tx, err := d.db.Begin() //nolint:noctx
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	f.SessionID = sessionID
	f.Size = int64(len(f.Data))
	f.Uploaded = d.now().UnixMilli()
	f.Downloaded = 0

	if f.Data == nil {
		f.Data = []byte{}
	}

	res, err := tx.Exec(createFile, f.SessionID, f.Name, f.Type, f.Size, f.Data, f.Uploaded) //nolint:noctx
	if err != nil {
		return err
	}

	if f.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	return tx.Commit()
}

// ReadSessionFiles allows iteration over the files of a session, in upload
// order, without their data.
func (d *DBRO) ReadSessionFiles(sessionID string) *IterErr[*File] {
	return iterRows(context.Background(), d, scanFile, selectSessionFiles, sessionID)
}

func scanFile(scanner scanner) (*File, error) {
	f := new(File)

	if err := scanner.Scan(
		&f.ID,
		&f.SessionID,
		&f.Name,
		&f.Type,
		&f.Size,
		&f.Uploaded,
		&f.Downloaded,
	); err != nil {
		return nil, err
	}

	return f, nil
}

func scanFileWithData(scanner scanner) (*File, error) {
	f := new(File)

	if err := scanner.Scan(
		&f.ID,
		&f.SessionID,
		&f.Name,
		&f.Type,
		&f.Size,
		&f.Uploaded,
		&f.Downloaded,
		&f.Data,
	); err != nil {
		return nil, err
	}

	return f, nil
}

// GetFile returns the file, including its data, with the given ID from the
// given session.
func (d *DBRO) GetFile(sessionID string, fileID int64) (*File, error) {
	f, err := scanFileWithData(d.db.QueryRow(selectFile, sessionID, fileID)) //nolint:noctx
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}

	return f, err
}

// MarkDownloaded records that the given file has been downloaded.
func (d *DB) MarkDownloaded(sessionID string, fileID int64) error {
	_, err := d.exec(updateFileDownloaded, d.now().UnixMilli(), sessionID, fileID)

	return err
}

// SessionRecords returns an iterator over the files of a session as archive
// records, in upload order. File data is read from the database one row at a
// time as the iterator advances.
//
// Record names are made safe with SafeName and unique within the session.
func (d *DBRO) SessionRecords(ctx context.Context, sessionID string) iter.Seq2[zipper.Record, error] {
	return func(yield func(zipper.Record, error) bool) {
		files := iterRows(ctx, d, scanFileWithData, selectSessionFilesWithData, sessionID)
		names := make(uniqueNames)

		for f := range files.Iter {
			if !yield(zipper.Record{Name: names.add(SafeName(f.Name, f.ID)), Data: f.Data}, nil) {
				return
			}
		}

		if files.Error != nil {
			yield(zipper.Record{}, files.Error)
		}
	}
}
