// Package langmeta provides a shared registry of Minecraft locale codes
// with their native and English language names, used for resolving
// human-entered target languages ("korean", "한국어", "ko_kr") to the
// locale code lang files are written under.
package langmeta

import "strings"

// Meta describes one Minecraft locale.
type Meta struct {
	// Code is the Minecraft locale code (lang file name).
	Code string
	// Name is the native language name, used in translation prompts.
	Name string
	// English is the English language name.
	English string
}

// Registry contains the locales modpacks are commonly translated into.
// The game itself ships many more; unknown codes still work, they just
// resolve without a display name.
var Registry = map[string]Meta{
	"cs_cz": {Code: "cs_cz", Name: "Čeština", English: "Czech"},
	"da_dk": {Code: "da_dk", Name: "Dansk", English: "Danish"},
	"de_de": {Code: "de_de", Name: "Deutsch", English: "German"},
	"en_gb": {Code: "en_gb", Name: "English (UK)", English: "English (UK)"},
	"en_us": {Code: "en_us", Name: "English (US)", English: "English (US)"},
	"es_es": {Code: "es_es", Name: "Español", English: "Spanish"},
	"es_mx": {Code: "es_mx", Name: "Español (México)", English: "Spanish (Mexico)"},
	"fi_fi": {Code: "fi_fi", Name: "Suomi", English: "Finnish"},
	"fr_fr": {Code: "fr_fr", Name: "Français", English: "French"},
	"hu_hu": {Code: "hu_hu", Name: "Magyar", English: "Hungarian"},
	"id_id": {Code: "id_id", Name: "Bahasa Indonesia", English: "Indonesian"},
	"it_it": {Code: "it_it", Name: "Italiano", English: "Italian"},
	"ja_jp": {Code: "ja_jp", Name: "日本語", English: "Japanese"},
	"ko_kr": {Code: "ko_kr", Name: "한국어", English: "Korean"},
	"nl_nl": {Code: "nl_nl", Name: "Nederlands", English: "Dutch"},
	"no_no": {Code: "no_no", Name: "Norsk", English: "Norwegian"},
	"pl_pl": {Code: "pl_pl", Name: "Polski", English: "Polish"},
	"pt_br": {Code: "pt_br", Name: "Português (Brasil)", English: "Portuguese (Brazil)"},
	"pt_pt": {Code: "pt_pt", Name: "Português", English: "Portuguese"},
	"ro_ro": {Code: "ro_ro", Name: "Română", English: "Romanian"},
	"ru_ru": {Code: "ru_ru", Name: "Русский", English: "Russian"},
	"sv_se": {Code: "sv_se", Name: "Svenska", English: "Swedish"},
	"th_th": {Code: "th_th", Name: "ไทย", English: "Thai"},
	"tr_tr": {Code: "tr_tr", Name: "Türkçe", English: "Turkish"},
	"uk_ua": {Code: "uk_ua", Name: "Українська", English: "Ukrainian"},
	"vi_vn": {Code: "vi_vn", Name: "Tiếng Việt", English: "Vietnamese"},
	"zh_cn": {Code: "zh_cn", Name: "简体中文", English: "Chinese (Simplified)"},
	"zh_tw": {Code: "zh_tw", Name: "繁體中文", English: "Chinese (Traditional)"},
}

// aliases maps human-entered language names (native and English, plus
// two-letter codes) to locale codes.
var aliases = map[string]string{
	"chinese":     "zh_cn",
	"cs":          "cs_cz",
	"czech":       "cs_cz",
	"da":          "da_dk",
	"danish":      "da_dk",
	"de":          "de_de",
	"deutsch":     "de_de",
	"dutch":       "nl_nl",
	"en":          "en_us",
	"english":     "en_us",
	"es":          "es_es",
	"español":     "es_es",
	"fi":          "fi_fi",
	"finnish":     "fi_fi",
	"fr":          "fr_fr",
	"français":    "fr_fr",
	"french":      "fr_fr",
	"german":      "de_de",
	"hu":          "hu_hu",
	"hungarian":   "hu_hu",
	"id":          "id_id",
	"indonesian":  "id_id",
	"it":          "it_it",
	"italian":     "it_it",
	"italiano":    "it_it",
	"ja":          "ja_jp",
	"japanese":    "ja_jp",
	"ko":          "ko_kr",
	"korean":      "ko_kr",
	"nl":          "nl_nl",
	"no":          "no_no",
	"norwegian":   "no_no",
	"pl":          "pl_pl",
	"polish":      "pl_pl",
	"polski":      "pl_pl",
	"portuguese":  "pt_pt",
	"pt":          "pt_pt",
	"ro":          "ro_ro",
	"romanian":    "ro_ro",
	"ru":          "ru_ru",
	"russian":     "ru_ru",
	"spanish":     "es_es",
	"sv":          "sv_se",
	"swedish":     "sv_se",
	"th":          "th_th",
	"thai":        "th_th",
	"tr":          "tr_tr",
	"turkish":     "tr_tr",
	"uk":          "uk_ua",
	"ukrainian":   "uk_ua",
	"vi":          "vi_vn",
	"vietnamese":  "vi_vn",
	"zh":          "zh_cn",
	"日本語":         "ja_jp",
	"русский":     "ru_ru",
	"简体中文":        "zh_cn",
	"繁體中文":        "zh_tw",
	"한국어":         "ko_kr",
	"українська":  "uk_ua",
	"türkçe":      "tr_tr",
	"nederlands":  "nl_nl",
	"svenska":     "sv_se",
	"suomi":       "fi_fi",
	"magyar":      "hu_hu",
	"čeština":     "cs_cz",
	"dansk":       "da_dk",
	"română":      "ro_ro",
	"ไทย":         "th_th",
	"tiếng việt":  "vi_vn",
	"português":   "pt_pt",
}

func canonicalize(lang string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(lang), "-", "_"))
}

// Resolve returns the locale for a language entered as a locale code
// ("ko_kr", "ko-KR"), a two-letter code ("ko"), or a language name
// ("korean", "한국어"). Unknown input falls through as a bare code so
// locales outside the registry still work.
func Resolve(lang string) Meta {
	norm := canonicalize(lang)
	if m, ok := Registry[norm]; ok {
		return m
	}
	if code, ok := aliases[norm]; ok {
		return Registry[code]
	}
	return Meta{Code: norm, Name: lang, English: lang}
}

// Name returns the native language name for a locale code, falling back
// to the code itself.
func Name(code string) string {
	return Resolve(code).Name
}
