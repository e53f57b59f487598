package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"hoursboard/internal/core"
	"hoursboard/internal/log"
	"hoursboard/internal/middleware/security"
	"hoursboard/internal/services"
	"hoursboard/internal/storage"
)

const historyLimit = 20

// handleUpload loads a multipart spreadsheet and makes it the session's table.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		s.appMetrics.failed.Add(1)
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			s.fail(w, r, log.OpLoad, &http.MaxBytesError{Limit: s.maxUploadBytes})
			return
		}
		BadRequestError("Invalid upload request").Write(w)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.appMetrics.failed.Add(1)
		BadRequestError("Choose a spreadsheet to upload").Write(w)
		return
	}
	defer file.Close()

	filename := sanitizeInput(header.Filename)
	if security.SuspiciousUpload(filename) {
		logger.WarnContext(ctx, "Rejected upload with unexpected extension",
			log.FieldFilename, filename,
			log.FieldSizeBytes, header.Size)
		s.appMetrics.failed.Add(1)
		s.fail(w, r, log.OpLoad, fmt.Errorf("%s: %w", filename, core.ErrUnsupportedFormat))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.appMetrics.failed.Add(1)
		s.fail(w, r, log.OpLoad, fmt.Errorf("read upload: %w", err))
		return
	}

	loaded, err := s.uploads.Upload(ctx, filename, data)
	if err != nil {
		s.appMetrics.failed.Add(1)
		s.fail(w, r, log.OpLoad, err)
		return
	}
	s.loadedResponse(w, r, loaded)
}

// handleImportSheets loads a tab of the configured Google spreadsheet.
func (s *Server) handleImportSheets(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	sheet := sanitizeInput(r.Form.Get("sheet"))
	if sheet == "" {
		sheet = s.importSheet
	}
	if sheet == "" {
		BadRequestError("Sheet name is required").Write(w)
		return
	}

	loaded, err := s.uploads.ImportSheet(r.Context(), sheet)
	if err != nil {
		s.appMetrics.failed.Add(1)
		s.fail(w, r, log.OpImport, err)
		return
	}
	s.loadedResponse(w, r, loaded)
}

func (s *Server) loadedResponse(w http.ResponseWriter, r *http.Request, l services.Loaded) {
	s.appMetrics.uploads.Add(1)
	s.activate(w, r, l)

	rows := len(l.Table.Records)
	total := core.TotalHours(l.Table.Records)
	resp := NewHTMXResponse().
		TriggerUploadLoaded(l.Fingerprint, l.Filename, rows).
		TriggerSuccessNotification(fmt.Sprintf("Loaded %s: %d rows, %s hours", l.Filename, rows, core.FormatHours(total)))
	if l.Stored {
		resp.TriggerHistoryRefresh()
	}
	if msg := warningText(l.Table.Warnings); msg != "" {
		resp.TriggerWarningNotification(msg)
	}

	var body string
	if s.templates != nil {
		var buf bytes.Buffer
		if err := s.templates.ExecuteTemplate(&buf, "loaded.html", struct {
			Filename   string
			Rows       int
			TotalHours float64
			Warning    string
		}{l.Filename, rows, total, warningText(l.Table.Warnings)}); err == nil {
			body = buf.String()
		}
	}
	resp.BodyHTML(body).Write(w)
}

func warningText(w core.LoadWarnings) string {
	switch {
	case w.InvalidDates > 0 && w.InvalidMinutes > 0:
		return fmt.Sprintf("%d rows have unreadable dates and %d rows unreadable minutes", w.InvalidDates, w.InvalidMinutes)
	case w.InvalidDates > 0:
		return fmt.Sprintf("%d rows have unreadable dates and are excluded by the date filter", w.InvalidDates)
	case w.InvalidMinutes > 0:
		return fmt.Sprintf("%d rows have unreadable minutes, counted as 0", w.InvalidMinutes)
	}
	return ""
}

// handleUploads renders the upload history partial.
func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	data := struct {
		Enabled bool
		Current string
		Uploads []storage.Upload
	}{Enabled: s.uploads.HistoryEnabled()}

	if st, ok := s.sessions.Get(s.sessions.ID(w, r)); ok {
		data.Current = st.Fingerprint
	}
	if data.Enabled {
		uploads, err := s.uploads.History(r.Context(), historyLimit)
		if err != nil {
			s.fail(w, r, "history", err)
			return
		}
		data.Uploads = uploads
	}
	s.render(w, r, "uploads.html", data)
}

// handleOpenUpload reopens a stored upload for the session.
func (s *Server) handleOpenUpload(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	fp := r.PathValue("fingerprint")
	if !validFingerprint(fp) {
		BadRequestError("Invalid upload id").Write(w)
		return
	}
	loaded, err := s.uploads.Open(r.Context(), fp)
	if err != nil {
		s.fail(w, r, "open", err)
		return
	}
	s.activate(w, r, loaded)
	resp := NewHTMXResponse().
		TriggerUploadLoaded(loaded.Fingerprint, loaded.Filename, len(loaded.Table.Records)).
		TriggerSuccessNotification("Opened " + loaded.Filename)
	if msg := warningText(loaded.Table.Warnings); msg != "" {
		resp.TriggerWarningNotification(msg)
	}
	resp.Write(w)
}
