package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func localeProbe(t *testing.T, configure func(r *http.Request), lookup LanguageLookup) string {
	t.Helper()
	var got string
	handler := Locale(lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if configure != nil {
		configure(req)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestLocaleHeaderWins(t *testing.T) {
	got := localeProbe(t, func(r *http.Request) {
		r.Header.Set("X-Locale", "es-MX")
		r.Header.Set("Accept-Language", "fr-FR")
	}, nil)
	if got != "es" {
		t.Fatalf("locale = %q, want es", got)
	}
}

func TestLocaleAcceptLanguageFallback(t *testing.T) {
	got := localeProbe(t, func(r *http.Request) {
		r.Header.Set("Accept-Language", "de-CH, en;q=0.5")
	}, nil)
	if got != "de" {
		t.Fatalf("locale = %q, want de", got)
	}
}

func TestLocaleGeoIPFallback(t *testing.T) {
	got := localeProbe(t, func(r *http.Request) {
		r.RemoteAddr = "203.0.113.7:1234"
	}, func(ip string) string {
		if ip != "203.0.113.7" {
			t.Fatalf("lookup ip = %q", ip)
		}
		return "pt"
	})
	if got != "pt" {
		t.Fatalf("locale = %q, want pt", got)
	}
}

func TestLocaleUnknownLanguageDefaultsEnglish(t *testing.T) {
	got := localeProbe(t, func(r *http.Request) {
		r.Header.Set("X-Locale", "not-a-language-tag")
	}, nil)
	if got != "en" {
		t.Fatalf("locale = %q, want en", got)
	}
}
