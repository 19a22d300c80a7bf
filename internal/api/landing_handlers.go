package api

import (
	"fmt"
	"net/http"
	"os"

	"github.com/ignite/leadfunnel/internal/pkg/httputil"
	"github.com/ignite/leadfunnel/internal/service/lead"
)

// landingView is the data behind the landing page.
type landingView struct {
	Email           string
	MarketingAgreed bool
	Notice          string
	NoticeError     bool
	DownloadURL     string // set when the browser should start the download
	ShowModal       bool
	ModalText       string
}

// HandleLanding renders the landing page.
//
//	GET /
func (h *Handlers) HandleLanding(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, pageLanding, landingView{})
}

// HandleSubscribe handles the lead form. The page is re-rendered with the
// notice, and with the download trigger once consent was given.
//
//	POST /subscribe
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.BadRequest(w, "invalid form")
		return
	}
	sub := lead.Submission{
		Email:           r.PostFormValue("email"),
		MarketingAgreed: formBool(r, "marketing_agreed"),
		PrivacyAgreed:   formBool(r, "privacy_agreed"),
	}
	res := h.lead.Submit(r.Context(), sub)

	view := landingView{
		Email:           sub.Email,
		MarketingAgreed: sub.MarketingAgreed,
		Notice:          res.Notice,
		NoticeError:     !res.Download,
	}
	status := http.StatusOK
	if res.Download {
		view.DownloadURL = res.DownloadURL
	} else {
		status = http.StatusUnprocessableEntity
	}
	h.render(w, status, pageLanding, view)
}

// HandleSubscribeAPI is the JSON form of HandleSubscribe.
//
//	POST /api/subscribe
func (h *Handlers) HandleSubscribeAPI(w http.ResponseWriter, r *http.Request) {
	var sub lead.Submission
	if !httputil.Decode(w, r, &sub) {
		return
	}
	res := h.lead.Submit(r.Context(), sub)
	if !res.Download {
		httputil.JSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	httputil.OK(w, res)
}

// HandlePremium records a payment CTA click and re-renders the landing page
// with the "not available yet" modal open.
//
//	POST /premium
func (h *Handlers) HandlePremium(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.BadRequest(w, "invalid form")
		return
	}
	email := r.PostFormValue("email")
	res := h.lead.RecordPaymentClick(r.Context(), email)
	h.render(w, http.StatusOK, pageLanding, landingView{
		Email:     email,
		ShowModal: res.ShowModal,
		ModalText: res.Notice,
	})
}

// HandlePremiumAPI is the JSON form of HandlePremium.
//
//	POST /api/premium-click
func (h *Handlers) HandlePremiumAPI(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if r.ContentLength != 0 && !httputil.Decode(w, r, &body) {
		return
	}
	httputil.OK(w, h.lead.RecordPaymentClick(r.Context(), body.Email))
}

// HandleDownload serves the free guide as an attachment.
//
//	GET /download
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(h.landing.DownloadPath)
	if err != nil {
		h.log.Error("download asset missing", "path", h.landing.DownloadPath, "error", err)
		httputil.NotFound(w, "download not available")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		httputil.NotFound(w, "download not available")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.landing.DownloadName))
	http.ServeContent(w, r, h.landing.DownloadName, info.ModTime(), f)
}
