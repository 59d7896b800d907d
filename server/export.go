package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wtsi-hgi/library-exports/xlsx"
)

const defaultExportName = "export.xlsx"

type exportRequest struct {
	Filename string   `json:"filename"`
	Headers  []string `json:"headers"`
	Rows     [][]any  `json:"rows"`
}

// ExportXLSX is an HTTP endpoint that turns a JSON table into a downloadable
// spreadsheet.
//
// The body should look like:
//
//	{"filename": "loans.xlsx", "headers": ["Title", "Copies"], "rows": [["Dune", 3]]}
//
// JSON numbers become numeric cells and everything else becomes text. Without
// headers the rows are written as given.
func (s *Server) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	handle(w, r, s.exportXLSX)
}

func (s *Server) exportXLSX(w http.ResponseWriter, r *http.Request) error {
	req, err := readExportRequest(w, r, s.config.GetMaxUploadSize())
	if err != nil {
		return err
	}

	var data []byte

	if len(req.Headers) == 0 {
		data, err = xlsx.BuildFromRows(req.Rows)
	} else {
		data, err = xlsx.Build(req.Headers, req.Rows)
	}

	if err != nil {
		return err
	}

	h := w.Header()
	h.Set("Content-Type", xlsx.ContentType)
	h.Set("Content-Disposition", contentDisposition("attachment", exportName(req.Filename)))
	h.Set("Cache-Control", "no-store")

	_, err = w.Write(data)

	return err
}

func readExportRequest(w http.ResponseWriter, r *http.Request, maxSize int64) (*exportRequest, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSize))
	dec.UseNumber()

	var req exportRequest

	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError

		if errors.As(err, &mbe) {
			return nil, ErrFileTooLarge
		}

		return nil, ErrInvalidPayload
	}

	return &req, nil
}

func exportName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultExportName
	}

	if !strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		name += ".xlsx"
	}

	return name
}
