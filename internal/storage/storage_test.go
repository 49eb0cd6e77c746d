package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bher20/bpimanager/internal/logging"
)

func init() {
	logging.SetOutput(io.Discard)
}

// backends returns every Storage implementation under test, each freshly
// opened on an empty database.
func backends(t *testing.T) map[string]Storage {
	t.Helper()
	ctx := context.Background()
	out := map[string]Storage{"memory": NewMemory()}
	for _, mode := range []string{"auto", "goose"} {
		dsn := filepath.Join(t.TempDir(), "bpi.db") + "?_pragma=foreign_keys(1)"
		st, err := Open(ctx, Config{Driver: "sqlite", DSN: dsn, Migrations: mode})
		if err != nil {
			t.Fatalf("open sqlite (%s): %v", mode, err)
		}
		t.Cleanup(func() { st.Close() })
		out["sqlite-"+mode] = st
	}
	return out
}

func sampleSnapshot(rates ...RateRecord) *Snapshot {
	return &Snapshot{
		UpdatedTime: "Oct 8, 2024 10:10:10 UTC",
		UpdatedISO:  "2024-10-08T10:10:10+00:00",
		UpdatedUK:   "Oct 8, 2024 at 11:10 BST",
		Disclaimer:  "test disclaimer",
		ChartName:   "Bitcoin",
		Rates:       rates,
	}
}

func TestUpsertCurrency_KeepsLocalizedName(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.UpsertCurrency(ctx, Currency{Code: "USD", LocalizedName: "美元", EnglishName: "US Dollar"}); err != nil {
				t.Fatalf("first upsert: %v", err)
			}
			if err := st.UpsertCurrency(ctx, Currency{Code: "USD", LocalizedName: "ignored", EnglishName: "United States Dollar"}); err != nil {
				t.Fatalf("second upsert: %v", err)
			}
			c, err := st.GetCurrency(ctx, "USD")
			if err != nil || c == nil {
				t.Fatalf("GetCurrency: %v %v", c, err)
			}
			if c.LocalizedName != "美元" {
				t.Errorf("localized name overwritten: %q", c.LocalizedName)
			}
			if c.EnglishName != "United States Dollar" {
				t.Errorf("english name not refreshed: %q", c.EnglishName)
			}
		})
	}
}

func TestCurrencyCRUD(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if c, err := st.GetCurrency(ctx, "EUR"); err != nil || c != nil {
				t.Fatalf("expected nil, nil for unknown code; got %v %v", c, err)
			}
			if err := st.CreateCurrency(ctx, Currency{Code: "EUR", LocalizedName: "歐元", EnglishName: "Euro"}); err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := st.CreateCurrency(ctx, Currency{Code: "EUR", LocalizedName: "x"}); !errors.Is(err, ErrConflict) {
				t.Fatalf("expected ErrConflict on duplicate, got %v", err)
			}
			if err := st.UpdateCurrency(ctx, Currency{Code: "EUR", LocalizedName: "歐元區", EnglishName: "Euro"}); err != nil {
				t.Fatalf("update: %v", err)
			}
			if err := st.UpdateCurrency(ctx, Currency{Code: "ZZZ", LocalizedName: "z"}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on update of unknown code, got %v", err)
			}
			list, err := st.ListCurrencies(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 1 || list[0].LocalizedName != "歐元區" {
				t.Fatalf("unexpected list: %+v", list)
			}
			if err := st.DeleteCurrency(ctx, "EUR"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := st.DeleteCurrency(ctx, "EUR"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on second delete, got %v", err)
			}
		})
	}
}

func TestSaveSnapshot_LatestRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if snap, err := st.LatestSnapshot(ctx); err != nil || snap != nil {
				t.Fatalf("expected no snapshot on empty store; got %v %v", snap, err)
			}
			for _, c := range []Currency{
				{Code: "USD", LocalizedName: "美元", EnglishName: "United States Dollar"},
				{Code: "GBP", LocalizedName: "英鎊", EnglishName: "British Pound Sterling"},
			} {
				if err := st.UpsertCurrency(ctx, c); err != nil {
					t.Fatalf("upsert %s: %v", c.Code, err)
				}
			}

			first := sampleSnapshot(RateRecord{CurrencyCode: "USD", Symbol: "&#36;", Rate: "1.00", RateFloat: decimal.NewFromInt(1)})
			if err := st.SaveSnapshot(ctx, first); err != nil {
				t.Fatalf("save first: %v", err)
			}

			second := sampleSnapshot(
				RateRecord{CurrencyCode: "USD", Symbol: "&#36;", Rate: "60,000.1234", RateFloat: decimal.RequireFromString("60000.1234")},
				RateRecord{CurrencyCode: "GBP", Symbol: "&pound;", Rate: "45,000.00", RateFloat: decimal.NewFromInt(45000)},
			)
			second.ChartName = "Bitcoin 2"
			if err := st.SaveSnapshot(ctx, second); err != nil {
				t.Fatalf("save second: %v", err)
			}
			if second.ID == 0 || second.ID == first.ID {
				t.Fatalf("expected a fresh id, got %d (first %d)", second.ID, first.ID)
			}
			if second.CreateTime.IsZero() {
				t.Fatalf("expected create time to be stamped")
			}

			latest, err := st.LatestSnapshot(ctx)
			if err != nil || latest == nil {
				t.Fatalf("LatestSnapshot: %v %v", latest, err)
			}
			if latest.ID != second.ID || latest.ChartName != "Bitcoin 2" {
				t.Fatalf("expected the second snapshot, got %+v", latest)
			}
			if len(latest.Rates) != 2 {
				t.Fatalf("expected 2 rate rows, got %d", len(latest.Rates))
			}
			byCode := map[string]RateRecord{}
			for _, r := range latest.Rates {
				byCode[r.CurrencyCode] = r
			}
			usd := byCode["USD"]
			if usd.Rate != "60,000.1234" || !usd.RateFloat.Equal(decimal.RequireFromString("60000.1234")) {
				t.Errorf("unexpected USD row: %+v", usd)
			}
			if usd.Currency == nil || usd.Currency.EnglishName != "United States Dollar" {
				t.Errorf("expected currency to be loaded, got %+v", usd.Currency)
			}
			if byCode["GBP"].Symbol != "&pound;" {
				t.Errorf("unexpected GBP row: %+v", byCode["GBP"])
			}
		})
	}
}

func TestSaveSnapshot_KeepsFullRatePrecision(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, code := range []string{"BTC", "VND"} {
				if err := st.UpsertCurrency(ctx, Currency{Code: code, LocalizedName: code}); err != nil {
					t.Fatalf("upsert %s: %v", code, err)
				}
			}
			want := map[string]decimal.Decimal{
				"BTC": decimal.NewFromFloat(0.123456789012),
				"VND": decimal.NewFromFloat(1.5e20),
			}
			snap := sampleSnapshot(
				RateRecord{CurrencyCode: "BTC", Rate: "0.123456789012", RateFloat: want["BTC"]},
				RateRecord{CurrencyCode: "VND", Rate: "150,000,000,000,000,000,000", RateFloat: want["VND"]},
			)
			if err := st.SaveSnapshot(ctx, snap); err != nil {
				t.Fatalf("save: %v", err)
			}

			latest, err := st.LatestSnapshot(ctx)
			if err != nil || latest == nil {
				t.Fatalf("LatestSnapshot: %v %v", latest, err)
			}
			if len(latest.Rates) != len(want) {
				t.Fatalf("expected %d rate rows, got %d", len(want), len(latest.Rates))
			}
			for _, r := range latest.Rates {
				if !r.RateFloat.Equal(want[r.CurrencyCode]) {
					t.Errorf("%s: stored %s, want %s", r.CurrencyCode, r.RateFloat, want[r.CurrencyCode])
				}
			}
		})
	}
}

func TestSaveSnapshot_UnknownCurrencyWritesNothing(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.UpsertCurrency(ctx, Currency{Code: "USD", LocalizedName: "美元"}); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			snap := sampleSnapshot(
				RateRecord{CurrencyCode: "USD", Rate: "1", RateFloat: decimal.NewFromInt(1)},
				RateRecord{CurrencyCode: "XXX", Rate: "2", RateFloat: decimal.NewFromInt(2)},
			)
			if err := st.SaveSnapshot(ctx, snap); !errors.Is(err, ErrUnknownCurrency) {
				t.Fatalf("expected ErrUnknownCurrency, got %v", err)
			}
			if latest, err := st.LatestSnapshot(ctx); err != nil || latest != nil {
				t.Fatalf("expected nothing persisted; got %+v %v", latest, err)
			}
		})
	}
}

func TestDeleteCurrency_InUse(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.UpsertCurrency(ctx, Currency{Code: "JPY", LocalizedName: "日圓"}); err != nil {
				t.Fatalf("upsert: %v", err)
			}
			snap := sampleSnapshot(RateRecord{CurrencyCode: "JPY", Rate: "9,000,000", RateFloat: decimal.NewFromInt(9000000)})
			if err := st.SaveSnapshot(ctx, snap); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := st.DeleteCurrency(ctx, "JPY"); !errors.Is(err, ErrInUse) {
				t.Fatalf("expected ErrInUse, got %v", err)
			}
		})
	}
}

func TestTokensAndJobs(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tok := Token{ID: "t1", Name: "ci", TokenHash: "abc", Role: "editor"}
			if err := st.CreateToken(ctx, tok); err != nil {
				t.Fatalf("create token: %v", err)
			}
			got, err := st.GetTokenByHash(ctx, "abc")
			if err != nil || got == nil || got.Role != "editor" {
				t.Fatalf("GetTokenByHash: %+v %v", got, err)
			}
			if err := st.DeleteToken(ctx, "t1"); err != nil {
				t.Fatalf("delete token: %v", err)
			}
			if got, _ := st.GetTokenByHash(ctx, "abc"); got != nil {
				t.Fatalf("expected token to be gone")
			}

			if job, err := st.GetScheduledJob(ctx, "refresh_feed"); err != nil || job != nil {
				t.Fatalf("expected no job row yet: %+v %v", job, err)
			}
		})
	}
}

func TestOpen_StartsWithEmptyDirectory(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			list, err := st.ListCurrencies(ctx)
			if err != nil {
				t.Fatalf("ListCurrencies: %v", err)
			}
			if len(list) != 0 {
				t.Fatalf("expected an empty directory, got %+v", list)
			}
		})
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "mysql"}); err == nil {
		t.Fatal("expected an error for an unsupported driver")
	}
}
