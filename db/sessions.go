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
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a print session accepts uploads for when no
// other lifetime is configured.
const DefaultSessionTTL = 10 * time.Minute

// Session is a print session, with the files uploaded to it. Times are in
// milliseconds since the Unix epoch.
type Session struct {
	ID      string  `json:"id"`
	Created int64   `json:"createdAt"`
	Expires int64   `json:"expiresAt"`
	Used    bool    `json:"used"`
	Files   []*File `json:"files"`
}

// CreateSession creates a new, empty session that expires after the given
// duration.
func (d *DB) CreateSession(ttl time.Duration) (*Session, error) {
	if err := d.removeExpired(); err != nil {
		return nil, err
	}

	now := d.now()
	s := &Session{
		ID:      uuid.NewString(),
		Created: now.UnixMilli(),
		Expires: now.Add(ttl).UnixMilli(),
		Files:   []*File{},
	}

	if _, err := d.exec(createSession, s.ID, s.Created, s.Expires); err != nil {
		return nil, err
	}

	return s, nil
}

// GetSession returns the session with the given ID, along with details of its
// files, in upload order. The file data is not loaded.
func (d *DB) GetSession(id string) (*Session, error) {
	if err := d.removeExpired(); err != nil {
		return nil, err
	}

	return d.getSession(id)
}

func (d *DBRO) getSession(id string) (*Session, error) {
	s := new(Session)

	if err := d.db.QueryRow(selectSession, id).Scan( //nolint:noctx
		&s.ID,
		&s.Created,
		&s.Expires,
		&s.Used,
	); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	} else if err != nil {
		return nil, err
	}

	s.Files = []*File{}

	if err := d.ReadSessionFiles(id).ForEach(func(f *File) error {
		s.Files = append(s.Files, f)

		return nil
	}); err != nil {
		return nil, err
	}

	return s, nil
}

// available returns the session if it exists and has not expired.
func (d *DB) available(id string) (*Session, error) {
	s, err := d.GetSession(id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrSessionNotAvailable
	} else if err != nil {
		return nil, err
	}

	if s.Expires <= d.now().UnixMilli() {
		return nil, ErrSessionNotAvailable
	}

	return s, nil
}

// MarkSessionUsed records that the files of a session have been collected.
func (d *DB) MarkSessionUsed(id string) error {
	_, err := d.exec(updateSessionUsed, id)

	return err
}

// ConsumeSession removes a session and all of its files.
func (d *DB) ConsumeSession(id string) error {
	if err := d.removeExpired(); err != nil {
		return err
	}

	affected, err := d.exec(deleteSession, id)
	if err != nil {
		return err
	}

	if affected == 0 {
		return ErrSessionNotAvailable
	}

	_, err = d.exec(deleteOrphanedFiles)

	return err
}
