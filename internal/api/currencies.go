package api

import (
	"net/http"

	"github.com/bher20/bpimanager/internal/storage"
)

// CurrencyRequest is the body of POST and PUT /api/currencies.
type CurrencyRequest struct {
	Code        string `json:"code"`
	ChineseName string `json:"chineseName"`
	EnglishName string `json:"englishName"`
}

// CurrencyResponse is one directory entry.
type CurrencyResponse struct {
	Code        string `json:"code"`
	ChineseName string `json:"chineseName"`
	EnglishName string `json:"englishName"`
}

func toResponse(c *storage.Currency) CurrencyResponse {
	return CurrencyResponse{Code: c.Code, ChineseName: c.LocalizedName, EnglishName: c.EnglishName}
}

func (h *handler) listCurrencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.CurrencyDetails(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "ok", list)
}

func (h *handler) getCurrency(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.CurrencyDetail(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "ok", d)
}

func (h *handler) createCurrency(w http.ResponseWriter, r *http.Request) {
	var req CurrencyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Directory().Create(r.Context(), storage.Currency{
		Code:          req.Code,
		LocalizedName: req.ChineseName,
		EnglishName:   req.EnglishName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/currencies/"+c.Code)
	writeOK(w, http.StatusCreated, "currency created", toResponse(c))
}

// updateCurrency replaces both names; the code in the path wins over any code
// in the body.
func (h *handler) updateCurrency(w http.ResponseWriter, r *http.Request) {
	var req CurrencyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Directory().Update(r.Context(), storage.Currency{
		Code:          r.PathValue("code"),
		LocalizedName: req.ChineseName,
		EnglishName:   req.EnglishName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "currency updated", toResponse(c))
}

func (h *handler) deleteCurrency(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Directory().Delete(r.Context(), r.PathValue("code")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "currency deleted", nil)
}
