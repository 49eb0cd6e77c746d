package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/bpimanager/internal/auth"
	"github.com/bher20/bpimanager/internal/logging"
	"github.com/bher20/bpimanager/internal/rates"
	"github.com/bher20/bpimanager/internal/storage"
)

func init() {
	logging.SetOutput(io.Discard)
}

const feedJSON = `{
  "time": {"updated": "Oct 8, 2024 10:10:10 UTC", "updatedISO": "2024-10-08T10:10:10+00:00", "updateduk": "Oct 8, 2024 at 11:10 BST"},
  "disclaimer": "test",
  "chartName": "Bitcoin",
  "bpi": {
    "USD": {"code": "USD", "symbol": "&#36;", "rate": "60,000.0000", "description": "United States Dollar", "rate_float": 60000},
    "GBP": {"code": "GBP", "symbol": "&pound;", "rate": "45,000.0000", "description": "British Pound Sterling", "rate_float": 45000}
  }
}`

type testServer struct {
	t     *testing.T
	mux   http.Handler
	store *storage.MemoryStorage
	svc   *rates.Service
}

func newTestServer(t *testing.T, mutate func(*Deps)) *testServer {
	t.Helper()
	st := storage.NewMemory()
	svc := rates.NewService(rates.Config{}, st)
	d := Deps{Rates: svc, Store: st}
	if mutate != nil {
		mutate(&d)
	}
	return &testServer{t: t, mux: NewMux(d), store: st, svc: svc}
}

func (s *testServer) do(method, path, body string, header ...string) (*httptest.ResponseRecorder, Envelope) {
	s.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var env Envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData(t *testing.T, env Envelope, dst any) {
	t.Helper()
	b, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, dst))
}

func TestInputThenTransform(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := s.do(http.MethodPost, "/api/coindesk/input", feedJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 200, env.ReturnCode)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var res IngestResult
	decodeData(t, env, &res)
	assert.Equal(t, 2, res.Currencies)
	assert.NotZero(t, res.SnapshotID)

	rec, env = s.do(http.MethodGet, "/api/coindesk/transform", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view rates.View
	decodeData(t, env, &view)
	assert.Equal(t, rates.View{
		UpdateTime: "2024/10/08 10:10:10",
		Currencies: []rates.ViewCurrency{
			{Code: "GBP", ChineseName: "英鎊", Rate: 45000},
			{Code: "USD", ChineseName: "美元", Rate: 60000},
		},
	}, view)
}

func TestInput_Invalid(t *testing.T) {
	s := newTestServer(t, nil)

	for _, body := range []string{`{not json`, `null`, `{"bpi":{}}`} {
		rec, env := s.do(http.MethodPost, "/api/coindesk/input", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, http.StatusBadRequest, env.ReturnCode, body)
		assert.Nil(t, env.Data)
	}
}

func TestInput_EntryCodeFollowsKey(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := s.do(http.MethodPost, "/api/coindesk/input", `{"time":{"updatedISO":"2024-10-08T10:10:10+00:00"},"bpi":{"USD":{"code":"usd","rate_float":60000}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, env := s.do(http.MethodGet, "/api/coindesk/original", "")
	var out OriginalFeed
	decodeData(t, env, &out)
	assert.Equal(t, "USD", out.Feed.BPI["USD"].Code)
}

func TestOriginal_FallsBackToSeed(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := s.do(http.MethodGet, "/api/coindesk/original", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out OriginalFeed
	decodeData(t, env, &out)
	assert.Equal(t, rates.SourceSeed, out.Source)
	assert.Contains(t, out.Feed.BPI, "EUR")

	s.do(http.MethodPost, "/api/coindesk/input", feedJSON)
	_, env = s.do(http.MethodGet, "/api/coindesk/original", "")
	decodeData(t, env, &out)
	assert.Equal(t, rates.SourceCache, out.Source)
	assert.Equal(t, 45000.0, out.Feed.BPI["GBP"].RateFloat)
}

func TestCurrencyCRUD(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := s.do(http.MethodPost, "/api/currencies", `{"code":"JPY","chineseName":"日圓","englishName":"Japanese Yen"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 200, env.ReturnCode)
	assert.Equal(t, "/api/currencies/JPY", rec.Header().Get("Location"))

	rec, env = s.do(http.MethodPost, "/api/currencies", `{"code":"JPY","chineseName":"日幣"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, http.StatusConflict, env.ReturnCode)

	rec, _ = s.do(http.MethodPost, "/api/currencies", `{"code":"","chineseName":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/currencies/JPY", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var d rates.CurrencyDetail
	decodeData(t, env, &d)
	assert.Equal(t, "日圓", d.ChineseName)

	rec, env = s.do(http.MethodPut, "/api/currencies/JPY", `{"chineseName":"日幣","englishName":"Yen"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var upd CurrencyResponse
	decodeData(t, env, &upd)
	assert.Equal(t, CurrencyResponse{Code: "JPY", ChineseName: "日幣", EnglishName: "Yen"}, upd)

	rec, _ = s.do(http.MethodPut, "/api/currencies/CHF", `{"chineseName":"瑞士法郎"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodDelete, "/api/currencies/JPY", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, env = s.do(http.MethodGet, "/api/currencies/JPY", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, env.ReturnCode)
}

func TestCurrencyList_EnrichedWithRates(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(http.MethodPost, "/api/coindesk/input", feedJSON)

	rec, env := s.do(http.MethodGet, "/api/currencies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []rates.CurrencyDetail
	decodeData(t, env, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "GBP", list[0].Code)
	require.NotNil(t, list[0].RateFloat)
	assert.Equal(t, 45000.0, *list[0].RateFloat)
	assert.Equal(t, "British Pound Sterling", list[0].EnglishName)
}

func TestDeleteCurrency_InUse(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(http.MethodPost, "/api/coindesk/input", feedJSON)

	rec, env := s.do(http.MethodDelete, "/api/currencies/USD", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, http.StatusConflict, env.ReturnCode)
}

func TestAuth_ProtectsWrites(t *testing.T) {
	ctx := context.Background()
	var authSvc *auth.Service
	s := newTestServer(t, func(d *Deps) {
		var err error
		authSvc, err = auth.NewService(d.Store)
		require.NoError(t, err)
		d.Auth = authSvc
	})
	_, viewer, err := authSvc.CreateToken(ctx, "viewer", auth.RoleViewer, nil)
	require.NoError(t, err)
	_, editor, err := authSvc.CreateToken(ctx, "editor", auth.RoleEditor, nil)
	require.NoError(t, err)

	rec, env := s.do(http.MethodPost, "/api/coindesk/input", feedJSON)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, env.ReturnCode)

	rec, _ = s.do(http.MethodPost, "/api/coindesk/input", feedJSON, "Authorization", "Bearer "+viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/coindesk/input", feedJSON, "Authorization", "Bearer "+editor)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Reads stay public.
	rec, _ = s.do(http.MethodGet, "/api/coindesk/transform", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(d *Deps) {
		d.RateLimitRPS = 0.001
		d.RateLimitBurst = 2
	})

	for i := 0; i < 2; i++ {
		rec, _ := s.do(http.MethodGet, "/api/coindesk/transform", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, env := s.do(http.MethodGet, "/api/coindesk/transform", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, http.StatusTooManyRequests, env.ReturnCode)
}

func TestHealthAndDocs(t *testing.T) {
	s := newTestServer(t, nil)

	for path, want := range map[string]int{
		"/healthz":           http.StatusOK,
		"/readyz":            http.StatusOK,
		"/livez":             http.StatusOK,
		"/metrics":           http.StatusOK,
		"/docs/":             http.StatusOK,
		"/docs/openapi.yaml": http.StatusOK,
		"/":                  http.StatusFound,
	} {
		rec, _ := s.do(http.MethodGet, path, "")
		assert.Equal(t, want, rec.Code, path)
	}

	rec, _ := s.do(http.MethodGet, "/docs/openapi.yaml", "")
	assert.Contains(t, rec.Body.String(), "/api/coindesk/transform")
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)
	rec, _ := s.do(http.MethodGet, "/api/coindesk/input", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
