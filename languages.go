package tlstream

import (
	"sort"
	"strings"
)

// LanguageNames maps language codes to the English names used in prompts.
var LanguageNames = map[string]string{
	"en":    "English",
	"ja":    "Japanese",
	"zh":    "Chinese (Simplified)",
	"zh-TW": "Chinese (Traditional)",
	"ko":    "Korean",
	"es":    "Spanish",
	"fr":    "French",
	"de":    "German",
	"it":    "Italian",
	"pt":    "Portuguese",
	"pt-BR": "Portuguese (Brazil)",
	"ru":    "Russian",
	"uk":    "Ukrainian",
	"pl":    "Polish",
	"nl":    "Dutch",
	"sv":    "Swedish",
	"tr":    "Turkish",
	"ar":    "Arabic",
	"he":    "Hebrew",
	"fa":    "Persian",
	"hi":    "Hindi",
	"th":    "Thai",
	"vi":    "Vietnamese",
	"id":    "Indonesian",
}

// RTLLanguages contains language codes that use right-to-left text direction.
var RTLLanguages = map[string]bool{
	"ar": true, // Arabic
	"he": true, // Hebrew
	"fa": true, // Persian/Farsi
	"ur": true, // Urdu
}

// Language describes a selectable language for clients.
type Language struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Direction string `json:"dir"`
}

// SupportedLanguages returns all known languages sorted by code.
func SupportedLanguages() []Language {
	langs := make([]Language, 0, len(LanguageNames))
	for code, name := range LanguageNames {
		langs = append(langs, Language{Code: code, Name: name, Direction: GetDirection(code)})
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i].Code < langs[j].Code })
	return langs
}

// GetLanguageName returns the human-readable name for a language code.
// Falls back to the base language, then to the code itself.
func GetLanguageName(langCode string) string {
	code := NormalizeLocale(langCode)
	if name, ok := LanguageNames[code]; ok {
		return name
	}
	if name, ok := LanguageNames[normalizeBaseLang(code)]; ok {
		return name
	}
	return langCode
}

// GetDirection returns "rtl" for right-to-left languages, "ltr" otherwise.
func GetDirection(langCode string) string {
	if RTLLanguages[normalizeBaseLang(langCode)] {
		return "rtl"
	}
	return "ltr"
}

// NormalizeLocale converts a language code to BCP 47 form (e.g., "pt_br" → "pt-BR").
func NormalizeLocale(langCode string) string {
	parts := strings.Split(strings.ReplaceAll(strings.TrimSpace(langCode), "_", "-"), "-")
	parts[0] = strings.ToLower(parts[0])
	for i := 1; i < len(parts); i++ {
		parts[i] = strings.ToUpper(parts[i])
	}
	return strings.Join(parts, "-")
}

// normalizeBaseLang extracts the base language code (e.g., "en" from "en_US").
func normalizeBaseLang(lang string) string {
	lang = strings.ReplaceAll(lang, "_", "-")
	return strings.ToLower(strings.Split(lang, "-")[0])
}
