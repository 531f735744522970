// Package language holds the fixed set of target languages supported by the
// translator and the speech engine.
//
// Each language has two codes: the translation model's target identifier
// (NLLB-200 flores codes such as "hin_Deva") and the two-letter code used by
// the text-to-speech engine ("hi").
package language

import "strings"

const (
	// SourceCode is the translation model identifier for the OCR output language.
	SourceCode = "eng_Latn"

	// OCRCode is the Tesseract language pack used for extraction.
	OCRCode = "eng"

	// DefaultSpeechCode is used when a language has no speech mapping.
	DefaultSpeechCode = "en"
)

// Language describes one selectable target language.
type Language struct {
	Name       string `json:"name"`
	TargetCode string `json:"target_code"`
	SpeechCode string `json:"speech_code"`
}

// Slug returns the lowercased name, used in download filenames.
func (l Language) Slug() string {
	return strings.ToLower(l.Name)
}

// IsZero reports whether l is the zero Language.
func (l Language) IsZero() bool {
	return l.Name == "" && l.TargetCode == ""
}

// Order matters: the first entry is the default selection.
var targetCodes = []struct {
	name string
	code string
}{
	{"Telugu", "tel_Telu"},
	{"Hindi", "hin_Deva"},
	{"Kannada", "kan_Knda"},
	{"Tamil", "tam_Taml"},
	{"Bengali", "ben_Beng"},
	{"Malayalam", "mal_Mlym"},
	{"Marathi", "mar_Deva"},
}

var speechCodes = map[string]string{
	"Telugu":    "te",
	"Hindi":     "hi",
	"Kannada":   "kn",
	"Tamil":     "ta",
	"Bengali":   "bn",
	"Malayalam": "ml",
	"Marathi":   "mr",
}

// All returns the supported languages in display order.
func All() []Language {
	out := make([]Language, 0, len(targetCodes))
	for _, tc := range targetCodes {
		out = append(out, Language{
			Name:       tc.name,
			TargetCode: tc.code,
			SpeechCode: SpeechCodeFor(tc.name),
		})
	}
	return out
}

// Names returns the human-readable language names in display order.
func Names() []string {
	names := make([]string, 0, len(targetCodes))
	for _, tc := range targetCodes {
		names = append(names, tc.name)
	}
	return names
}

// Default returns the initial language selection.
func Default() Language {
	return All()[0]
}

// Lookup resolves a language by name, ignoring case and surrounding space.
func Lookup(name string) (Language, bool) {
	name = strings.TrimSpace(name)
	for _, l := range All() {
		if strings.EqualFold(l.Name, name) {
			return l, true
		}
	}
	return Language{}, false
}

// ByTargetCode resolves a language from its translation model identifier.
func ByTargetCode(code string) (Language, bool) {
	for _, l := range All() {
		if l.TargetCode == code {
			return l, true
		}
	}
	return Language{}, false
}

// SpeechCodeFor returns the speech engine code for a language name, falling
// back to DefaultSpeechCode.
func SpeechCodeFor(name string) string {
	if code, ok := speechCodes[name]; ok && code != "" {
		return code
	}
	return DefaultSpeechCode
}
