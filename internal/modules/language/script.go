// README: Script-family classification used to guess and verify the language of a text.
package language

import (
	"unicode"
)

// Script is a writing-system family.
type Script string

const (
	ScriptUnknown  Script = ""
	ScriptLatin    Script = "latin"
	ScriptHan      Script = "han"
	ScriptJapanese Script = "japanese"
	ScriptHangul   Script = "hangul"
	ScriptHebrew   Script = "hebrew"
	ScriptArabic   Script = "arabic"
	ScriptCyrillic Script = "cyrillic"
	ScriptThai     Script = "thai"
)

var scriptTables = map[Script][]*unicode.RangeTable{
	ScriptLatin:    {unicode.Latin},
	ScriptHan:      {unicode.Han},
	ScriptJapanese: {unicode.Han, unicode.Hiragana, unicode.Katakana},
	ScriptHangul:   {unicode.Hangul, unicode.Han},
	ScriptHebrew:   {unicode.Hebrew},
	ScriptArabic:   {unicode.Arabic},
	ScriptCyrillic: {unicode.Cyrillic},
	ScriptThai:     {unicode.Thai},
}

var baseScripts = map[string]Script{
	"en": ScriptLatin,
	"es": ScriptLatin,
	"fr": ScriptLatin,
	"de": ScriptLatin,
	"it": ScriptLatin,
	"pt": ScriptLatin,
	"zh": ScriptHan,
	"ja": ScriptJapanese,
	"ko": ScriptHangul,
	"he": ScriptHebrew,
	"ar": ScriptArabic,
	"ru": ScriptCyrillic,
	"uk": ScriptCyrillic,
	"th": ScriptThai,
}

// ScriptFor returns the script family a language is written in.
func ScriptFor(lang string) Script {
	base, ok := baseOf(lang)
	if !ok {
		return ScriptUnknown
	}
	return baseScripts[base]
}

// ScriptRatio is the share of letters in text that belong to script s.
// Digits, punctuation, symbols and whitespace are not counted. A text with no
// letters has ratio 0.
func ScriptRatio(text string, s Script) float64 {
	tables, ok := scriptTables[s]
	if !ok {
		return 0
	}
	var letters, inScript int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.In(r, tables...) {
			inScript++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(inScript) / float64(letters)
}

// ScriptMatches reports whether more than threshold of the letters in text are
// written in the script of lang. Unknown languages never match.
func ScriptMatches(text, lang string, threshold float64) bool {
	s := ScriptFor(lang)
	if s == ScriptUnknown {
		return false
	}
	return ScriptRatio(text, s) > threshold
}

// GuessFromScript returns a language code when the dominant script of text
// identifies one unambiguously. Latin text yields "" because the script alone
// cannot tell English from Spanish.
func GuessFromScript(text string) string {
	counts := map[*unicode.RangeTable]int{}
	letters := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		for _, t := range []*unicode.RangeTable{
			unicode.Hiragana, unicode.Katakana, unicode.Han, unicode.Hangul,
			unicode.Hebrew, unicode.Arabic, unicode.Cyrillic, unicode.Thai,
		} {
			if unicode.Is(t, r) {
				counts[t]++
				break
			}
		}
	}
	if letters == 0 {
		return ""
	}
	// Any kana marks Japanese even when kanji dominate.
	if counts[unicode.Hiragana]+counts[unicode.Katakana] > 0 {
		return "ja"
	}
	best, bestN := "", 0
	for t, code := range map[*unicode.RangeTable]string{
		unicode.Han:      "zh-TW",
		unicode.Hangul:   "ko",
		unicode.Hebrew:   "he",
		unicode.Arabic:   "ar",
		unicode.Cyrillic: "ru",
		unicode.Thai:     "th",
	} {
		if n := counts[t]; n > bestN || (n == bestN && n > 0 && code < best) {
			best, bestN = code, n
		}
	}
	if float64(bestN)/float64(letters) <= 0.5 {
		return ""
	}
	return best
}
