package jpost

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/asksbj/jpstamp-pipeline/config"
	"github.com/asksbj/jpstamp-pipeline/domain"
	"github.com/asksbj/jpstamp-pipeline/domain/jpost/geocode"
	"github.com/asksbj/jpstamp-pipeline/l3"
	"github.com/asksbj/jpstamp-pipeline/sched"
)

var logger = l3.Get()

func init() {
	domain.RegisterScheduler(Domain, buildFromBootstrap)
}

// buildFromBootstrap adapts domain.Bootstrap's domain-agnostic
// collaborators into jpost's own Dependencies, the entry point
// domain.BuildScheduler calls in place of a hand-maintained switch,
// replacing the distilled task_scheduler.py's SCHEDULERS["jpost"] entry.
func buildFromBootstrap(workerCount int, boot domain.Bootstrap) (*sched.Scheduler, error) {
	chain, err := geocode.NewChain(boot.HTTPClient, 4096, geocodeVendors()...)
	if err != nil {
		return nil, fmt.Errorf("jpost: building geocode vendor chain: %w", err)
	}

	return Build(workerCount, Dependencies{
		DB:         boot.DB,
		DBPool:     boot.DBPool,
		Repo:       &FSRepository{Root: filepath.Join(boot.DataRoot, Domain)},
		Geocoder:   chain,
		HTTPClient: boot.HTTPClient,
	}), nil
}

// geocodeVendors builds the location stage's vendor fallback chain from
// GEOCODE_VENDOR_ORDER (default "nominatim,google_maps") and
// GOOGLE_MAPS_API_KEY, the Go equivalent of
// original_source/core/settings.py's GEO_INFO_VENDORS.
func geocodeVendors() []geocode.Vendor {
	order := config.GetEnvAsString("GEOCODE_VENDOR_ORDER", "nominatim,google_maps")
	apiKey := config.GetEnvAsString("GOOGLE_MAPS_API_KEY", "")

	var vendors []geocode.Vendor
	for _, name := range strings.Split(order, ",") {
		switch strings.TrimSpace(name) {
		case "nominatim":
			vendors = append(vendors, &geocode.NominatimVendor{UserAgent: "jpstamp-pipeline"})
		case "google_maps":
			if apiKey == "" {
				logger.WarnF("jpost: skipping google_maps geocode vendor, GOOGLE_MAPS_API_KEY unset")
				continue
			}
			vendors = append(vendors, &geocode.GoogleMapsVendor{APIKey: apiKey, UserAgent: "jpstamp-pipeline"})
		case "":
		default:
			logger.WarnF("jpost: unknown geocode vendor %q in GEOCODE_VENDOR_ORDER", name)
		}
	}
	return vendors
}
