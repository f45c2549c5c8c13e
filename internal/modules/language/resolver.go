// README: Deterministic response-language fallback chain.
package language

import (
	"strings"

	"golang.org/x/text/language"
)

// Source names the step of the chain that produced a resolution.
type Source string

const (
	SourceSession  Source = "session"
	SourceRequest  Source = "request"
	SourceDetected Source = "detected"
	SourceClient   Source = "client"
	SourceRegion   Source = "region"
	SourceDefault  Source = "default"
)

// DefaultSupported is the set of response languages with fallback copy.
var DefaultSupported = []string{"en", "es", "fr", "zh-TW", "ja", "ko", "he", "ar", "ru"}

type Options struct {
	Supported       []string
	PrimaryRegion   string
	PrimaryLanguage string
	Default         string
}

// Input carries the candidate languages in priority order.
type Input struct {
	SessionUILanguage string
	BaseLanguage      string
	DetectedLanguage  string
	// ClientLanguage is the client's stated preference, such as a browser's
	// Accept-Language. It ranks below the language of the query itself.
	ClientLanguage string
	RegionCode     string
}

type Resolution struct {
	Language string `json:"language"`
	Source   Source `json:"source"`
}

// Resolver picks the response language. It holds no mutable state, so one
// instance is shared by all requests.
type Resolver struct {
	byBase          map[string]string
	primaryRegion   string
	primaryLanguage string
	fallback        string
}

func NewResolver(opts Options) *Resolver {
	if len(opts.Supported) == 0 {
		opts.Supported = DefaultSupported
	}
	r := &Resolver{byBase: make(map[string]string, len(opts.Supported))}
	for _, code := range opts.Supported {
		if base, ok := baseOf(code); ok {
			if _, dup := r.byBase[base]; !dup {
				r.byBase[base] = code
			}
		}
	}
	r.fallback = r.canonical(opts.Default)
	if r.fallback == "" {
		r.fallback = "en"
		if _, ok := r.byBase["en"]; !ok {
			r.fallback = opts.Supported[0]
		}
	}
	if region, err := language.ParseRegion(strings.TrimSpace(opts.PrimaryRegion)); err == nil {
		r.primaryRegion = region.String()
	}
	r.primaryLanguage = r.canonical(opts.PrimaryLanguage)
	return r
}

// Resolve walks session, request, detected, client, region and default in
// that order.
// It always returns a supported language.
func (r *Resolver) Resolve(in Input) Resolution {
	if code := r.canonical(in.SessionUILanguage); code != "" {
		return Resolution{Language: code, Source: SourceSession}
	}
	if code := r.canonical(in.BaseLanguage); code != "" {
		return Resolution{Language: code, Source: SourceRequest}
	}
	if code := r.canonical(in.DetectedLanguage); code != "" {
		return Resolution{Language: code, Source: SourceDetected}
	}
	if code := r.canonical(in.ClientLanguage); code != "" {
		return Resolution{Language: code, Source: SourceClient}
	}
	if r.primaryRegion != "" && r.primaryLanguage != "" {
		if region, err := language.ParseRegion(strings.TrimSpace(in.RegionCode)); err == nil && region.String() == r.primaryRegion {
			return Resolution{Language: r.primaryLanguage, Source: SourceRegion}
		}
	}
	return Resolution{Language: r.fallback, Source: SourceDefault}
}

// Supports reports whether code maps to a supported language.
func (r *Resolver) Supports(code string) bool {
	return r.canonical(code) != ""
}

// canonical maps any BCP 47 spelling ("zh_TW", "EN-us", "zh-Hant") to the
// supported code sharing its base language, or "" when none does.
func (r *Resolver) canonical(code string) string {
	base, ok := baseOf(code)
	if !ok {
		return ""
	}
	return r.byBase[base]
}

func baseOf(code string) (string, bool) {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return "", false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf != language.Exact {
		return "", false
	}
	return base.String(), true
}
