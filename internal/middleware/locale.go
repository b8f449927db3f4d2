package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}

// LocaleKey is the context key under which the resolved language code lives.
var LocaleKey = localeContextKey{}

// LanguageLookup resolves a default language code from an IP address.
type LanguageLookup func(ip string) string

// supported lists the languages description copy can be generated in.
// The first entry is the fallback the matcher confidence-checks against.
var supported = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Italian,
	language.Portuguese,
	language.Dutch,
	language.Japanese,
	language.Korean,
	language.Chinese,
}

var matcher = language.NewMatcher(supported)

// Locale resolves the request language and stores it in the context.
// Resolution order: X-Locale header, Accept-Language, GeoIP lookup, English.
func Locale(lookup LanguageLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LocaleKey, resolveLanguage(r, lookup))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveLanguage(r *http.Request, lookup LanguageLookup) string {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return matchLanguage(tag)
		}
	}
	if header := r.Header.Get("Accept-Language"); header != "" {
		if tags, _, err := language.ParseAcceptLanguage(header); err == nil && len(tags) > 0 {
			tag, _, conf := matcher.Match(tags...)
			if conf > language.No {
				return baseCode(tag)
			}
		}
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if lang := lookup(ip); lang != "" {
				return lang
			}
		}
	}
	return "en"
}

func matchLanguage(tag language.Tag) string {
	matched, _, conf := matcher.Match(tag)
	if conf == language.No {
		return "en"
	}
	return baseCode(matched)
}

func baseCode(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// LocaleFromContext returns the resolved language code, defaulting to English.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok && v != "" {
		return v
	}
	return "en"
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
