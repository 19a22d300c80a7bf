package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/leadfunnel/internal/auth"
	"github.com/ignite/leadfunnel/internal/domain"
	"github.com/ignite/leadfunnel/internal/pkg/httputil"
	"github.com/ignite/leadfunnel/internal/service/dashboard"
	"github.com/ignite/leadfunnel/internal/storage"
)

// multipartMemory is how much of an upload is held in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

// Dashboard notices passed as ?notice=.
var adminNotices = map[string]string{
	"uploaded":         "File uploaded.",
	"deleted":          "File deleted.",
	"no_file":          "Please choose a file to upload.",
	"too_large":        "That file is too large.",
	"upload_failed":    "Upload failed. Please try again.",
	"delete_failed":    "Delete failed. Please try again.",
	"not_found":        "That file no longer exists.",
	"password_updated": "Password updated.",
}

// fileView is one row of the file table.
type fileView struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Error       string    `json:"error,omitempty"`
}

func toFileViews(entries []dashboard.FileEntry) []fileView {
	out := make([]fileView, 0, len(entries))
	for _, e := range entries {
		v := fileView{
			Name:        e.Name,
			URL:         e.URL,
			Size:        e.Size,
			ContentType: e.ContentType,
			CreatedAt:   e.CreatedAt,
		}
		if e.Err != nil {
			v.Error = "link unavailable"
		}
		out = append(out, v)
	}
	return out
}

// dashboardResponse is the JSON body of GET /admin/api/dashboard.
type dashboardResponse struct {
	Subscribers []domain.Subscriber   `json:"subscribers"`
	Clicks      []domain.PaymentClick `json:"clicks"`
	Stats       dashboard.Stats       `json:"stats"`
	Files       []fileView            `json:"files"`
	Errors      map[string]string     `json:"errors,omitempty"`
}

// loadDashboard reads everything the dashboard shows. Each source fails on
// its own; failures are reported per source.
func (h *Handlers) loadDashboard(r *http.Request) dashboardResponse {
	d := h.dashboard.Load(r.Context())
	resp := dashboardResponse{
		Subscribers: d.Subscribers,
		Clicks:      d.Clicks,
		Stats:       d.Stats,
		Files:       []fileView{},
		Errors:      map[string]string{},
	}
	if resp.Subscribers == nil {
		resp.Subscribers = []domain.Subscriber{}
	}
	if resp.Clicks == nil {
		resp.Clicks = []domain.PaymentClick{}
	}
	if d.SubscribersErr != nil {
		resp.Errors["subscribers"] = "could not load subscribers"
	}
	if d.ClicksErr != nil {
		resp.Errors["clicks"] = "could not load payment clicks"
	}

	entries, err := h.dashboard.ListFiles(r.Context())
	if err != nil {
		h.log.Error("list files failed", "error", err)
		resp.Errors["files"] = "could not load files"
	} else {
		resp.Files = toFileViews(entries)
	}
	return resp
}

type adminView struct {
	dashboardResponse
	Email  string
	Notice string
}

// HandleAdmin renders the dashboard. The page guard runs again here so the
// page never renders without a resolved session.
//
//	GET /admin
func (h *Handlers) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	g := h.auth.Check(r)
	if g.State() != auth.StateAuthenticated {
		http.Redirect(w, r, auth.LoginRedirect(r.URL.RequestURI()), http.StatusFound)
		return
	}
	h.render(w, http.StatusOK, pageAdmin, adminView{
		dashboardResponse: h.loadDashboard(r),
		Email:             g.Session().Email,
		Notice:            adminNotices[r.URL.Query().Get("notice")],
	})
}

// readUpload pulls the "file" part out of a multipart request.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request) (dashboard.Upload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return dashboard.Upload{}, nil, errTooLarge
		}
		return dashboard.Upload{}, nil, dashboard.ErrNoFile
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return dashboard.Upload{}, nil, dashboard.ErrNoFile
	}
	up := dashboard.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	cleanup := func() {
		file.Close()
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}
	return up, cleanup, nil
}

var errTooLarge = errors.New("file too large")

// HandleUploadForm handles the dashboard upload form.
//
//	POST /admin/files
func (h *Handlers) HandleUploadForm(w http.ResponseWriter, r *http.Request) {
	up, cleanup, err := h.readUpload(w, r)
	var stored domain.StoredFile
	if err == nil {
		defer cleanup()
		stored, _, err = h.dashboard.Upload(r.Context(), up)
	}
	notice := "uploaded"
	switch {
	case err == nil:
	case stored.Name != "":
		// The page re-lists on load.
		h.log.Warn("listing refresh failed after upload", "name", stored.Name, "error", err)
	case errors.Is(err, errTooLarge):
		notice = "too_large"
	case errors.Is(err, dashboard.ErrNoFile):
		notice = "no_file"
	default:
		h.log.Error("upload failed", "error", err)
		notice = "upload_failed"
	}
	http.Redirect(w, r, "/admin?notice="+notice, http.StatusSeeOther)
}

// HandleDeleteForm handles the per-row delete button.
//
//	POST /admin/files/delete
func (h *Handlers) HandleDeleteForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	_, err := h.dashboard.Delete(r.Context(), r.PostFormValue("name"))
	notice := "deleted"
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidName), errors.Is(err, dashboard.ErrInvalidName):
		notice = "not_found"
	default:
		h.log.Error("delete failed", "error", err)
		notice = "delete_failed"
	}
	http.Redirect(w, r, "/admin?notice="+notice, http.StatusSeeOther)
}

// GetDashboard returns subscribers, clicks, stats and files.
//
//	GET /admin/api/dashboard
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.loadDashboard(r))
}

// ListFiles returns the bucket listing with public URLs.
//
//	GET /admin/api/files
func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := h.dashboard.ListFiles(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"files": toFileViews(entries)})
}

// UploadFile stores a multipart "file" part and returns the refreshed
// listing.
//
//	POST /admin/api/files
func (h *Handlers) UploadFile(w http.ResponseWriter, r *http.Request) {
	up, cleanup, err := h.readUpload(w, r)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		httputil.BadRequest(w, err.Error())
		return
	}
	defer cleanup()

	stored, entries, err := h.dashboard.Upload(r.Context(), up)
	switch {
	case errors.Is(err, dashboard.ErrNoFile):
		httputil.BadRequest(w, err.Error())
		return
	case err != nil && stored.Name == "":
		httputil.InternalError(w, err)
		return
	}
	resp := map[string]interface{}{"file": stored, "files": toFileViews(entries)}
	if err != nil {
		// Stored, but the refresh failed.
		h.log.Warn("listing refresh failed after upload", "error", err)
		resp["files_error"] = "could not refresh files"
	}
	httputil.Created(w, resp)
}

// DeleteFile removes an object and returns the refreshed listing.
//
//	DELETE /admin/api/files/{name}
func (h *Handlers) DeleteFile(w http.ResponseWriter, r *http.Request) {
	entries, err := h.dashboard.Delete(r.Context(), chi.URLParam(r, "name"))
	switch {
	case err == nil:
		httputil.OK(w, map[string]interface{}{"files": toFileViews(entries)})
	case errors.Is(err, storage.ErrNotFound):
		httputil.NotFound(w, "file not found")
	case errors.Is(err, storage.ErrInvalidName), errors.Is(err, dashboard.ErrInvalidName):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
