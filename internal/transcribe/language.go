package transcribe

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

const minDetectChars = 20

// DetectLanguage guesses the transcript language; short or unknown text yields language.Und.
func DetectLanguage(text string) language.Tag {
	text = StripTimestamps(text)
	if len(strings.TrimSpace(text)) < minDetectChars {
		return language.Und
	}
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		return language.Und
	}
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und
	}
	return tag
}
