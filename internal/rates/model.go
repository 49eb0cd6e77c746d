package rates

// Feed is one price-index reading in the ingestion wire format.
type Feed struct {
	Time       TimeInfo                `json:"time"`
	Disclaimer string                  `json:"disclaimer"`
	ChartName  string                  `json:"chartName"`
	BPI        map[string]CurrencyRate `json:"bpi"`
}

// TimeInfo carries the feed's three renderings of its update time.
type TimeInfo struct {
	Updated    string `json:"updated"`
	UpdatedISO string `json:"updatedISO"`
	UpdatedUK  string `json:"updateduk"`
}

// CurrencyRate is one currency's entry in the bpi map. Rate is the feed's
// display string and RateFloat its numeric value; both are kept as given.
type CurrencyRate struct {
	Code        string  `json:"code"`
	Symbol      string  `json:"symbol"`
	Rate        string  `json:"rate"`
	Description string  `json:"description"`
	RateFloat   float64 `json:"rate_float"`
}

// Clone returns a deep copy of f.
func (f *Feed) Clone() *Feed {
	if f == nil {
		return nil
	}
	cp := *f
	if f.BPI != nil {
		cp.BPI = make(map[string]CurrencyRate, len(f.BPI))
		for k, v := range f.BPI {
			cp.BPI[k] = v
		}
	}
	return &cp
}

// View is the localized, display-ready rendering of a feed.
type View struct {
	UpdateTime string         `json:"updateTime"`
	Currencies []ViewCurrency `json:"currencies"`
}

type ViewCurrency struct {
	Code        string  `json:"code"`
	ChineseName string  `json:"chineseName"`
	Rate        float64 `json:"rate"`
}

// CurrencyDetail is a directory entry joined with the current feed's data
// for that code. Feed fields are empty when the feed has no such code.
type CurrencyDetail struct {
	Code        string   `json:"code"`
	ChineseName string   `json:"chineseName"`
	EnglishName string   `json:"englishName"`
	Symbol      string   `json:"symbol,omitempty"`
	Rate        string   `json:"rate,omitempty"`
	Description string   `json:"description,omitempty"`
	RateFloat   *float64 `json:"rateFloat,omitempty"`
	UpdateTime  string   `json:"updateTime,omitempty"`
}
