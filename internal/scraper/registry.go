package scraper

import (
	"errors"
	"fmt"
)

var ErrUnknownSource = errors.New("unknown scraping source")

// Descriptor binds a source name to its adapter constructor and the runner
// settings the site needs.
type Descriptor struct {
	Name       string
	Domain     string
	UseBrowser bool
	New        func() SiteScraper
}

var registry = map[string]Descriptor{
	"11880": {
		Name:   "11880",
		Domain: "11880.com",
		New:    func() SiteScraper { return NewElevenEighty() },
	},
	"gelbe_seiten": {
		Name:       "gelbe_seiten",
		Domain:     "gelbeseiten.de",
		UseBrowser: true,
		New:        func() SiteScraper { return NewGelbeSeiten() },
	},
	"das_oertliche": {
		Name:       "das_oertliche",
		Domain:     "dasoertliche.de",
		UseBrowser: true,
		New:        func() SiteScraper { return NewDasOertliche() },
	},
	"goyellow": {
		Name:       "goyellow",
		Domain:     "goyellow.de",
		UseBrowser: true,
		New:        func() SiteScraper { return NewGoYellow() },
	},
}

func Lookup(name string) (Descriptor, error) {
	d, ok := registry[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return d, nil
}

func Sources() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}
