// Package geocode implements the post office location lookup described in
// spec.md's jpost domain: a small vendor fallback chain (nominatim, then
// google maps) grounded on original_source/utils/geo_info/factory.py and
// its generators. Vendors carry no rate limit or retry settings of their
// own; retries come from the shared httpclient.Client that Chain sends
// every request through.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Address is the normalized geocode result every vendor produces.
type Address struct {
	Lat         string `json:"lat"`
	Long        string `json:"long"`
	AddressLine string `json:"address_line"`
	Postcode    string `json:"postcode"`
}

// Query is what a vendor geocodes against: the post office name plus the
// Japanese prefecture name used to disambiguate among candidate results.
type Query struct {
	PostOfficeName string
	PrefectureJA   string
}

var postcodeRE = regexp.MustCompile(`\d{3}-\d{4}`)

func extractPostcode(text string) string {
	return postcodeRE.FindString(text)
}

// Vendor is one geocoding backend's request/parse pair.
type Vendor interface {
	Name() string
	BuildRequest(ctx context.Context, q Query) (*http.Request, error)
	ParseResult(body []byte, q Query) (*Address, error)
}

// nominatimResult mirrors the subset of a Nominatim /search response
// fields NominatimGeoGenerator.parse_result reads.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimVendor geocodes via OpenStreetMap's Nominatim search API,
// grounded on original_source/jpost/utils/geo_info/generators/nominatim.py.
type NominatimVendor struct {
	BaseURL   string
	UserAgent string
}

func (v *NominatimVendor) Name() string { return "nominatim" }

func (v *NominatimVendor) BuildRequest(ctx context.Context, q Query) (*http.Request, error) {
	base := v.BaseURL
	if base == "" {
		base = "https://nominatim.openstreetmap.org/search"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	qs := u.Query()
	qs.Set("q", q.PostOfficeName)
	qs.Set("format", "json")
	qs.Set("countrycodes", "jp")
	u.RawQuery = qs.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if v.UserAgent != "" {
		req.Header.Set("User-Agent", v.UserAgent)
	}
	req.Header.Set("Accept-Language", "ja")
	return req, nil
}

func (v *NominatimVendor) ParseResult(body []byte, q Query) (*Address, error) {
	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("geocode: nominatim: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	best := pickBestNominatim(results, q.PrefectureJA)
	if best == nil {
		return nil, nil
	}
	return &Address{
		Lat:         best.Lat,
		Long:        best.Lon,
		AddressLine: best.DisplayName,
		Postcode:    extractPostcode(best.DisplayName),
	}, nil
}

// pickBestNominatim mirrors _pick_best_result: prefer a result whose
// display_name mentions the prefecture, falling back to the full result
// set (then the first entry) when none match.
func pickBestNominatim(results []nominatimResult, prefectureJA string) *nominatimResult {
	if prefectureJA == "" {
		return &results[0]
	}
	for i := range results {
		if strings.Contains(results[i].DisplayName, prefectureJA) {
			return &results[i]
		}
	}
	return &results[0]
}

// googleMapsResponse mirrors the subset of the Geocoding API response
// GoogleMapsGenerator.parse_result reads.
type googleMapsResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// GoogleMapsVendor geocodes via the Google Maps Geocoding API, grounded
// on original_source/jpost/utils/geo_info/generators/google_maps.py.
type GoogleMapsVendor struct {
	BaseURL   string
	APIKey    string
	UserAgent string
}

func (v *GoogleMapsVendor) Name() string { return "google_maps" }

func (v *GoogleMapsVendor) BuildRequest(ctx context.Context, q Query) (*http.Request, error) {
	base := v.BaseURL
	if base == "" {
		base = "https://maps.googleapis.com/maps/api/geocode/json"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	qs := u.Query()
	qs.Set("address", q.PostOfficeName)
	qs.Set("key", v.APIKey)
	qs.Set("language", "ja")
	u.RawQuery = qs.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if v.UserAgent != "" {
		req.Header.Set("User-Agent", v.UserAgent)
	}
	return req, nil
}

func (v *GoogleMapsVendor) ParseResult(body []byte, q Query) (*Address, error) {
	var resp googleMapsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("geocode: google_maps: %w", err)
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return nil, nil
	}

	idx := 0
	found := false
	if q.PrefectureJA == "" {
		found = true
	} else {
		for i, r := range resp.Results {
			if strings.Contains(r.FormattedAddress, q.PrefectureJA) {
				idx = i
				found = true
				break
			}
		}
	}
	if !found {
		return nil, nil
	}

	r := resp.Results[idx]
	return &Address{
		Lat:         fmt.Sprintf("%v", r.Geometry.Location.Lat),
		Long:        fmt.Sprintf("%v", r.Geometry.Location.Lng),
		AddressLine: r.FormattedAddress,
		Postcode:    extractPostcode(r.FormattedAddress),
	}, nil
}
