package intent

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"scout/internal/modules/language"
)

// HeuristicConfidence is the confidence reported for a parse made without the model.
const HeuristicConfidence = 0.3

// Checked before the open phrases: "not open" must not read as "open".
var closedPhrases = []string{
	"closed now", "currently closed", "not open", "closed",
	"cerrado", "fermé", "geschlossen", "закрыто",
	"打烊", "休息中", "未營業", "閉店", "営業時間外", "סגור", "مغلق",
}

var openPhrases = []string{
	"open now", "opened now", "open late", "currently open", "open",
	"abierto", "ouvert", "geöffnet", "открыто",
	"營業中", "营业中", "営業中", "영업중", "영업 중", "פתוח", "مفتوح",
}

var nearMePhrases = []string{
	"near me", "nearby", "around me", "close to me", "cerca de mí", "cerca", "près de moi",
	"рядом", "附近", "近く", "근처", "לידי", "בקרבת", "بالقرب",
}

// Location prepositions; the text after the last one is taken as the place.
var locationMarkers = []string{" in ", " near ", " around ", " at ", " en ", " à ", " в "}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "some": true, "best": true, "good": true,
	"find": true, "me": true, "show": true, "for": true, "places": true, "place": true,
	"un": true, "una": true, "el": true, "la": true, "le": true, "les": true, "des": true,
}

// Heuristic builds a best-effort intent from the raw query when the model
// call timed out or failed. It is deterministic.
func Heuristic(query string) Parsed {
	text := strings.TrimSpace(query)
	lower := strings.ToLower(text)

	p := Parsed{
		Language:   language.GuessFromScript(text),
		Confidence: HeuristicConfidence,
		Fallback:   true,
	}

	remaining := lower
	if cut, ok := cutPhrase(remaining, closedPhrases); ok {
		p.Filters.OpenNow = OpenNowExclude
		remaining = cut
	} else if cut, ok := cutPhrase(remaining, openPhrases); ok {
		p.Filters.OpenNow = OpenNowRequire
		remaining = cut
	}

	if cut, ok := cutPhrase(remaining, nearMePhrases); ok {
		p.NearMe = true
		remaining = cut
	}

	if !p.NearMe {
		padded := " " + remaining + " "
		for _, marker := range locationMarkers {
			if idx := strings.LastIndex(padded, marker); idx >= 0 {
				loc := strings.TrimSpace(padded[idx+len(marker):])
				if loc != "" {
					p.LocationText = originalCase(text, loc)
					remaining = padded[:idx]
				}
				break
			}
		}
	}

	for _, word := range strings.FieldsFunc(remaining, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'' && r != '-')
	}) {
		if stopWords[word] {
			continue
		}
		p.Terms = appendUnique(p.Terms, word)
	}
	if len(p.Terms) > 0 {
		p.Category = p.Terms[0]
	}
	return p
}

// cutPhrase removes the first phrase found in s and reports whether one was.
func cutPhrase(s string, phrases []string) (string, bool) {
	for _, phrase := range phrases {
		if start, end, ok := findPhrase(s, phrase); ok {
			return s[:start] + " " + s[end:], true
		}
	}
	return s, false
}

// findPhrase locates phrase in s. Phrases in scripts written without spaces
// match anywhere; all others must stand as whole words, so "open" is not
// found in "copenhagen".
func findPhrase(s, phrase string) (start, end int, ok bool) {
	bounded := !unspaced(phrase)
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], phrase)
		if i < 0 {
			return 0, 0, false
		}
		start, end = from+i, from+i+len(phrase)
		if !bounded || (wordBoundaryBefore(s, start) && wordBoundaryAfter(s, end)) {
			return start, end, true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		from = start + size
	}
	return 0, 0, false
}

func unspaced(phrase string) bool {
	for _, r := range phrase {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return true
		}
	}
	return false
}

func wordBoundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func wordBoundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// originalCase recovers the user's spelling of a lower-cased fragment.
func originalCase(original, lowerFragment string) string {
	if idx := strings.Index(strings.ToLower(original), lowerFragment); idx >= 0 && idx+len(lowerFragment) <= len(original) {
		return strings.TrimSpace(original[idx : idx+len(lowerFragment)])
	}
	return lowerFragment
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
