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

// Package server provides the HTTP endpoints for print sessions and
// spreadsheet exports.
package server

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/wtsi-hgi/library-exports/config"
	"github.com/wtsi-hgi/library-exports/db"
	"github.com/wtsi-hgi/library-exports/zipper"
	"vimagination.zapto.org/httpbuffer"

	_ "vimagination.zapto.org/httpbuffer/gzip"
)

// Store is the print session storage used by the server; it is satisfied by
// *db.DB.
type Store interface {
	CreateSession(ttl time.Duration) (*db.Session, error)
	GetSession(id string) (*db.Session, error)
	AddFile(sessionID string, f *db.File) error
	GetFile(sessionID string, fileID int64) (*db.File, error)
	MarkDownloaded(sessionID string, fileID int64) error
	MarkSessionUsed(id string) error
	ConsumeSession(id string) error
	SessionRecords(ctx context.Context, sessionID string) iter.Seq2[zipper.Record, error]
}

type Server struct {
	store  Store
	config *config.Config
	log    log15.Logger
	now    func() time.Time
}

// New creates a new server using the given store and config. Requests and
// failures are logged to the given logger.
func New(store Store, cfg *config.Config, logger log15.Logger) *Server {
	return &Server{
		store:  store,
		config: cfg,
		log:    logger,
		now:    time.Now,
	}
}

// Handler returns an http.Handler that routes to all of the server endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/print-sessions", s.CreateSession)
	mux.HandleFunc("GET /api/print-sessions/{id}", s.GetSession)
	mux.HandleFunc("POST /api/print-sessions/{id}", s.SessionAction)
	mux.HandleFunc("DELETE /api/print-sessions/{id}", s.DeleteSession)
	mux.HandleFunc("POST /api/print-sessions/{id}/upload", s.Upload)
	mux.HandleFunc("GET /api/print-sessions/{id}/files/{fileID}", s.File)
	mux.HandleFunc("GET /api/print-sessions/{id}/download-zip", s.DownloadZip)
	mux.HandleFunc("POST /api/export/xlsx", s.ExportXLSX)

	return s.logRequests(mux)
}

// Start creates a server and listens on the given address until the listener
// fails.
func Start(addr string, store Store, cfg *config.Config, logger log15.Logger) error {
	s := New(store, cfg, logger)

	logger.Info("listening", "addr", addr)

	return (&http.Server{ //nolint:gosec
		Addr:    addr,
		Handler: s.Handler(),
	}).ListenAndServe()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}

	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}

	return s.ResponseWriter.Write(p)
}

func (s *statusWriter) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w}
		start := time.Now()

		defer func() {
			s.log.Info("request", "method", r.Method, "path", r.URL.Path,
				"status", sw.status, "duration", time.Since(start))
		}()

		next.ServeHTTP(sw, r)
	})
}

func handle(w http.ResponseWriter, r *http.Request, fn func(http.ResponseWriter, *http.Request) error) {
	httpbuffer.Handler{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := fn(w, r); err != nil {
				writeError(w, err)
			}
		}),
	}.ServeHTTP(w, r)
}

func writeError(w http.ResponseWriter, err error) {
	var errc Error

	if errors.As(err, &errc) {
		http.Error(w, errc.Err.Error(), errc.Code)

		return
	}

	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// Error is an error that contains an HTTP error code.
type Error struct {
	Code int
	Err  error
}

func (e Error) Error() string {
	return e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}
