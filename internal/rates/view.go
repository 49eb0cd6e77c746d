package rates

import (
	"sort"
	"time"
)

// DisplayTimeLayout is the layout of View.UpdateTime.
const DisplayTimeLayout = "2006/01/02 15:04:05"

// FormatUpdateTime renders an RFC 3339 timestamp in UTC using
// DisplayTimeLayout. Input that does not parse is returned unchanged.
func FormatUpdateTime(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	return t.UTC().Format(DisplayTimeLayout)
}

// BuildView localizes f using names. Codes missing from names are shown
// under the code itself. Currencies are ordered by code.
func BuildView(f *Feed, names map[string]string) *View {
	v := &View{
		UpdateTime: FormatUpdateTime(f.Time.UpdatedISO),
		Currencies: make([]ViewCurrency, 0, len(f.BPI)),
	}
	for _, code := range sortedCodes(f.BPI) {
		name, ok := names[code]
		if !ok || name == "" {
			name = code
		}
		v.Currencies = append(v.Currencies, ViewCurrency{
			Code:        code,
			ChineseName: name,
			Rate:        f.BPI[code].RateFloat,
		})
	}
	return v
}

func sortedCodes(bpi map[string]CurrencyRate) []string {
	codes := make([]string, 0, len(bpi))
	for code := range bpi {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
