package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wtsi-hgi/library-exports/db"
	"github.com/wtsi-hgi/library-exports/zipper"
)

const defaultFileType = "application/octet-stream"

type sessionView struct {
	*db.Session
	Expired bool `json:"expired"`
}

// CreateSession is an HTTP endpoint that creates a new print session, returning
// its ID and expiry time.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	handle(w, r, s.createSession)
}

func (s *Server) createSession(w http.ResponseWriter, _ *http.Request) error {
	session, err := s.store.CreateSession(s.config.GetSessionTTL())
	if err != nil {
		return err
	}

	s.log.Info("session created", "id", session.ID)

	return json.NewEncoder(w).Encode(struct {
		ID      string `json:"id"`
		Expires int64  `json:"expiresAt"`
	}{
		ID:      session.ID,
		Expires: session.Expires,
	})
}

// GetSession is an HTTP endpoint that returns the details of a session and its
// files.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	handle(w, r, s.getSession)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) error {
	id, err := sessionID(r)
	if err != nil {
		return err
	}

	session, err := s.store.GetSession(id)
	if err != nil {
		return storeError(err)
	}

	return s.writeSession(w, session)
}

func (s *Server) writeSession(w http.ResponseWriter, session *db.Session) error {
	w.Header().Set("Content-Type", "application/json")

	return json.NewEncoder(w).Encode(sessionView{
		Session: session,
		Expired: session.Expires <= s.now().UnixMilli(),
	})
}

// SessionAction is an HTTP endpoint that performs the action named in the JSON
// body on a session. The only action is "consume", which removes the session
// and its files.
func (s *Server) SessionAction(w http.ResponseWriter, r *http.Request) {
	handle(w, r, s.sessionAction)
}

func (s *Server) sessionAction(w http.ResponseWriter, r *http.Request) error {
	id, err := sessionID(r)
	if err != nil {
		return err
	}

	var payload struct {
		Action string `json:"action"`
	}

	json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&payload) //nolint:errcheck

	if payload.Action != "consume" {
		return ErrInvalidAction
	}

	if err := s.consume(id); err != nil {
		return err
	}

	return json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// DeleteSession is an HTTP endpoint that removes a session and its files.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	handle(w, r, s.deleteSession)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) error {
	id, err := sessionID(r)
	if err != nil {
		return err
	}

	if err := s.consume(id); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)

	return nil
}

func (s *Server) consume(id string) error {
	if err := s.store.ConsumeSession(id); err != nil {
		return storeError(err)
	}

	s.log.Info("session consumed", "id", id)

	return nil
}

// Upload is an HTTP endpoint that accepts a multipart form with a single
// "file" field, adding the file to a session.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	handle(w, r, s.upload)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) error {
	id, err := sessionID(r)
	if err != nil {
		return err
	}

	maxSize := s.config.GetMaxUploadSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	f, err := readUpload(r, maxSize)
	if err != nil {
		return err
	}

	if err := s.store.AddFile(id, f); err != nil {
		return storeError(err)
	}

	s.log.Info("file uploaded", "session", id, "file", f.ID, "size", f.Size)

	return json.NewEncoder(w).Encode(map[string]*db.File{"file": f})
}

func readUpload(r *http.Request, maxSize int64) (*db.File, error) {
	mf, fh, err := r.FormFile("file")

	var mbe *http.MaxBytesError

	switch {
	case errors.As(err, &mbe):
		return nil, ErrFileTooLarge
	case errors.Is(err, http.ErrMissingFile):
		return nil, ErrMissingFile
	case err != nil:
		return nil, ErrInvalidPayload
	}

	defer mf.Close()
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	if fh.Size == 0 {
		return nil, ErrEmptyFile
	} else if fh.Size > maxSize {
		return nil, ErrFileTooLarge
	}

	data, err := io.ReadAll(mf)
	if err != nil {
		return nil, err
	}

	f := &db.File{
		Name: fh.Filename,
		Type: fh.Header.Get("Content-Type"),
		Data: data,
	}

	if f.Name == "" {
		f.Name = "upload"
	}

	if f.Type == "" {
		f.Type = defaultFileType
	}

	return f, nil
}

// File is an HTTP endpoint that returns the contents of a single uploaded file,
// marking it as downloaded.
func (s *Server) File(w http.ResponseWriter, r *http.Request) {
	if err := s.file(w, r); err != nil {
		writeError(w, err)
	}
}

func (s *Server) file(w http.ResponseWriter, r *http.Request) error {
	id, err := sessionID(r)
	if err != nil {
		return err
	}

	fileID, err := strconv.ParseInt(r.PathValue("fileID"), 10, 64)
	if err != nil {
		return ErrInvalidFile
	}

	f, err := s.store.GetFile(id, fileID)
	if err != nil {
		return storeError(err)
	}

	if err := s.store.MarkDownloaded(id, fileID); err != nil {
		s.log.Warn("failed to mark file downloaded", "session", id, "file", fileID, "err", err)
	}

	typ := f.Type
	if typ == "" {
		typ = defaultFileType
	}

	name := f.Name
	if name == "" {
		name = "library-print-file"
	}

	h := w.Header()
	h.Set("Content-Type", typ)
	h.Set("Content-Length", strconv.Itoa(len(f.Data)))
	h.Set("Content-Disposition", contentDisposition("inline", name))
	h.Set("Cache-Control", "no-store")

	_, err = w.Write(f.Data)

	return err
}

// DownloadZip is an HTTP endpoint that streams all of the files of a session
// as a ZIP archive.
//
// Files are compressed in parallel, but written to the response in upload
// order as soon as they are ready. If the files cannot be read part way
// through, the response is aborted so that the client does not receive an
// archive that looks complete.
func (s *Server) DownloadZip(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)

		return
	}

	session, err := s.store.GetSession(id)
	if err != nil {
		writeError(w, storeError(err))

		return
	}

	if len(session.Files) == 0 {
		writeError(w, ErrNoFiles)

		return
	}

	h := w.Header()
	h.Set("Content-Type", zipper.ContentType)
	h.Set("Content-Disposition", contentDisposition("attachment", "library-print-"+id+".zip"))
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	zw := zipper.NewWriter(w, zipper.Deflate)

	err = zipper.WriteAll(r.Context(), zw, s.store.SessionRecords(r.Context(), id), s.config.GetZipWorkers())
	if err == nil {
		err = zw.Close()
	}

	if err != nil {
		s.log.Error("zip download failed", "session", id, "entries", zw.Entries(), "err", err)

		panic(http.ErrAbortHandler)
	}

	if err := s.store.MarkSessionUsed(id); err != nil {
		s.log.Warn("failed to mark session used", "session", id, "err", err)
	}
}

func sessionID(r *http.Request) (string, error) {
	id := r.PathValue("id")
	if id == "" {
		return "", ErrInvalidSession
	}

	return id, nil
}

func contentDisposition(kind, name string) string {
	return kind + "; filename*=UTF-8''" + strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}

func storeError(err error) error {
	switch {
	case errors.Is(err, db.ErrSessionNotFound):
		return ErrSessionNotFound
	case errors.Is(err, db.ErrSessionNotAvailable):
		return ErrSessionNotAvailable
	case errors.Is(err, db.ErrFileNotFound):
		return ErrFileNotFound
	}

	return err
}

var (
	ErrInvalidSession = Error{
		Code: http.StatusBadRequest,
		Err:  errors.New("invalid_session"),
	}
	ErrInvalidFile = Error{
		Code: http.StatusBadRequest,
		Err:  errors.New("invalid_file"),
	}
	ErrInvalidAction = Error{
		Code: http.StatusBadRequest,
		Err:  errors.New("invalid_action"),
	}
	ErrInvalidPayload = Error{
		Code: http.StatusBadRequest,
		Err:  errors.New("invalid_payload"),
	}
	ErrMissingFile = Error{
		Code: http.StatusBadRequest,
		Err:  errors.New("missing_file"),
	}
	ErrEmptyFile = Error{
		Code: http.StatusBadRequest,
		Err:  errors.New("empty_file"),
	}
	ErrFileTooLarge = Error{
		Code: http.StatusRequestEntityTooLarge,
		Err:  errors.New("file_too_large"),
	}
	ErrSessionNotFound = Error{
		Code: http.StatusNotFound,
		Err:  db.ErrSessionNotFound,
	}
	ErrSessionNotAvailable = Error{
		Code: http.StatusGone,
		Err:  db.ErrSessionNotAvailable,
	}
	ErrFileNotFound = Error{
		Code: http.StatusNotFound,
		Err:  db.ErrFileNotFound,
	}
	ErrNoFiles = Error{
		Code: http.StatusNotFound,
		Err:  errors.New("no_files"),
	}
)
