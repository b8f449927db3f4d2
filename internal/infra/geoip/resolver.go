// Package geoip resolves a client's country from its IP address so the
// server can pick a sensible default language for generated listing copy.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// ErrUnavailable is returned when the resolver is not initialized.
var ErrUnavailable = errors.New("geoip resolver unavailable")

// LocaleResolver resolves a default copy language from an IP address.
type LocaleResolver interface {
	CountryCode(ip string) (string, error)
	DefaultLanguage(ip string) string
}

// countryLanguages maps ISO country codes to the language most listings in
// that market are written in. Unlisted countries fall back to English.
var countryLanguages = map[string]string{
	"ES": "es", "MX": "es", "AR": "es", "CO": "es", "CL": "es",
	"FR": "fr", "BE": "fr",
	"DE": "de", "AT": "de", "CH": "de",
	"IT": "it",
	"PT": "pt", "BR": "pt",
	"NL": "nl",
	"JP": "ja",
	"KR": "ko",
	"CN": "zh", "TW": "zh", "HK": "zh",
}

const fallbackLanguage = "en"

// Resolver provides lookups backed by a MaxMind GeoIP2 database.
type Resolver struct {
	reader *geoip2.Reader
}

// NewResolver opens the GeoIP database at the given path. When the path is empty, nil is returned.
func NewResolver(path string) (LocaleResolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return &Resolver{reader: reader}, nil
}

// CountryCode returns the ISO country code for the provided IP.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	if record == nil || record.Country.IsoCode == "" {
		return "", nil
	}
	return record.Country.IsoCode, nil
}

// DefaultLanguage returns the language code to use for description copy when
// the request doesn't specify one. Lookup failures fall back to English.
func (r *Resolver) DefaultLanguage(ip string) string {
	code, err := r.CountryCode(ip)
	if err != nil || code == "" {
		return fallbackLanguage
	}
	if lang, ok := countryLanguages[code]; ok {
		return lang
	}
	return fallbackLanguage
}

// Close closes the underlying database reader.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
