package rates

import (
	"github.com/shopspring/decimal"

	"github.com/bher20/bpimanager/internal/storage"
)

// FeedFromSnapshot rebuilds a feed from a stored snapshot. The description of
// each entry is the currency's English name from the directory.
func FeedFromSnapshot(snap *storage.Snapshot) *Feed {
	if snap == nil {
		return nil
	}
	f := &Feed{
		Time: TimeInfo{
			Updated:    snap.UpdatedTime,
			UpdatedISO: snap.UpdatedISO,
			UpdatedUK:  snap.UpdatedUK,
		},
		Disclaimer: snap.Disclaimer,
		ChartName:  snap.ChartName,
		BPI:        make(map[string]CurrencyRate, len(snap.Rates)),
	}
	for _, r := range snap.Rates {
		cr := CurrencyRate{
			Code:      r.CurrencyCode,
			Symbol:    r.Symbol,
			Rate:      r.Rate,
			RateFloat: r.RateFloat.InexactFloat64(),
		}
		if r.Currency != nil {
			cr.Description = r.Currency.EnglishName
		}
		f.BPI[r.CurrencyCode] = cr
	}
	return f
}

// SnapshotFromFeed maps a feed onto an unsaved snapshot with one rate row per
// bpi entry. IDs and CreateTime are left for the store to assign.
func SnapshotFromFeed(f *Feed) *storage.Snapshot {
	if f == nil {
		return nil
	}
	snap := &storage.Snapshot{
		UpdatedTime: f.Time.Updated,
		UpdatedISO:  f.Time.UpdatedISO,
		UpdatedUK:   f.Time.UpdatedUK,
		Disclaimer:  f.Disclaimer,
		ChartName:   f.ChartName,
		Rates:       make([]storage.RateRecord, 0, len(f.BPI)),
	}
	for _, code := range sortedCodes(f.BPI) {
		cr := f.BPI[code]
		snap.Rates = append(snap.Rates, storage.RateRecord{
			CurrencyCode: code,
			Symbol:       cr.Symbol,
			Rate:         cr.Rate,
			RateFloat:    decimal.NewFromFloat(cr.RateFloat),
		})
	}
	return snap
}
