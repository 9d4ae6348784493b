// Package registry builds the configured source adapters in their fixed
// registration order.
package registry

import (
	"time"

	"github.com/timmy/layoffwatch/internal/config"
	"github.com/timmy/layoffwatch/internal/domain"
	"github.com/timmy/layoffwatch/internal/source"
	"github.com/timmy/layoffwatch/internal/source/airtable"
	"github.com/timmy/layoffwatch/internal/source/officepulse"
	"github.com/timmy/layoffwatch/internal/source/peerlist"
	"github.com/timmy/layoffwatch/internal/source/staging"
)

// Order is the registration order of every known source.
var Order = []string{
	"layoffs_fyi",
	"layoffs_fyi_federal",
	"layoffstracker",
	"layoffstracker_nontech",
	peerlist.SourceID,
	officepulse.SourceID,
	staging.SourceID,
}

// Entry pairs an adapter with its registration.
type Entry struct {
	Adapter      source.Adapter
	Registration domain.AdapterRegistration
}

// Deps are the shared clients handed to adapters.
type Deps struct {
	HTTP     source.HTTPClient
	Renderer peerlist.Renderer
	Clock    source.Clock
}

// Build returns an entry for every enabled source, in Order.
func Build(cfg *config.SourcesConfig, deps Deps) []Entry {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	var entries []Entry
	add := func(sc config.SourceConfig, a source.Adapter) {
		if !cfg.IsEnabled(sc) {
			return
		}
		entries = append(entries, Entry{
			Adapter: a,
			Registration: domain.AdapterRegistration{
				Name:     a.SourceID(),
				Enabled:  true,
				Interval: sc.Interval,
			},
		})
	}

	withClock := airtable.WithClock(deps.Clock)
	add(cfg.LayoffsFyi, airtable.New(airtable.LayoffsFyi(cfg.LayoffsFyi.URL), deps.HTTP, withClock))
	add(cfg.LayoffsFyiFederal, airtable.New(airtable.LayoffsFyiFederal(cfg.LayoffsFyiFederal.URL), deps.HTTP, withClock))
	add(cfg.LayoffsTracker, airtable.New(airtable.LayoffsTracker(cfg.LayoffsTracker.URL), deps.HTTP, withClock))
	add(cfg.LayoffsTrackerNonTech, airtable.New(airtable.LayoffsTrackerNonTech(cfg.LayoffsTrackerNonTech.URL), deps.HTTP, withClock))

	add(cfg.Peerlist.SourceConfig, peerlist.New(peerlist.Config{
		BaseURL: cfg.Peerlist.URL,
		Years:   cfg.Peerlist.Years,
	}, deps.Renderer, peerlist.WithClock(deps.Clock)))

	add(cfg.OfficePulse, officepulse.New(cfg.OfficePulse.URL, deps.HTTP, officepulse.WithClock(deps.Clock)))

	add(cfg.Staging.SourceConfig, staging.NewAdapter(cfg.Staging.Path, cfg.Staging.Name, staging.WithClock(deps.Clock)))

	return entries
}
