package rates

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

//go:embed seed/bpi.json
var embeddedSeed []byte

// Seed is the bundled fallback feed used when neither the cache nor the store
// has data. It is parsed at most once; the result, including a failure, is
// kept for the life of the process.
type Seed struct {
	path string

	once sync.Once
	feed *Feed
	err  error
}

// NewSeed returns a seed that reads path, or the embedded dataset when path
// is empty.
func NewSeed(path string) *Seed {
	return &Seed{path: path}
}

// Load returns a private copy of the seed feed.
func (s *Seed) Load() (*Feed, error) {
	s.once.Do(func() {
		data := embeddedSeed
		if s.path != "" {
			b, err := os.ReadFile(s.path)
			if err != nil {
				s.err = fmt.Errorf("%w: %v", ErrSeedUnavailable, err)
				return
			}
			data = b
		}
		var f Feed
		if err := json.Unmarshal(data, &f); err != nil {
			s.err = fmt.Errorf("%w: decode: %v", ErrSeedUnavailable, err)
			return
		}
		s.feed = &f
	})
	if s.err != nil {
		return nil, s.err
	}
	return s.feed.Clone(), nil
}
