package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bher20/bpimanager/internal/rates"
)

const maxBodyBytes = 1 << 20

// IngestResult is returned by POST /api/coindesk/input.
type IngestResult struct {
	SnapshotID uint   `json:"snapshotId"`
	Currencies int    `json:"currencies"`
	CreateTime string `json:"createTime"`
}

// OriginalFeed is returned by GET /api/coindesk/original.
type OriginalFeed struct {
	Source rates.Source `json:"source"`
	Feed   *rates.Feed  `json:"feed"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", errBadRequest, err)
	}
	return nil
}

func (h *handler) input(w http.ResponseWriter, r *http.Request) {
	var feed *rates.Feed
	if err := decodeBody(w, r, &feed); err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := h.svc.Ingest(r.Context(), feed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "feed stored", IngestResult{
		SnapshotID: snap.ID,
		Currencies: len(snap.Rates),
		CreateTime: snap.CreateTime.UTC().Format(rates.DisplayTimeLayout),
	})
}

func (h *handler) transform(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.LocalizedView(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "ok", view)
}

func (h *handler) original(w http.ResponseWriter, r *http.Request) {
	feed, src, err := h.svc.Current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "ok", OriginalFeed{Source: src, Feed: feed})
}
