package pipeline

import (
	"regexp"
	"unicode"

	"github.com/cardfolio/cardscan/internal/models"
)

var (
	yearSeen  = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	gradeSeen = regexp.MustCompile(`(?i)\b(GEM\s?MT|MINT|NM(-MT)?|EX(-MT)?|AUTHENTIC)\b|\b(PSA|BGS|CGC)\s?(10|[1-9](\.5)?)\b`)
	certSeen  = regexp.MustCompile(`\b\d{8,10}\b`)
	latinSeen = regexp.MustCompile(`[A-Za-z]`)
)

// Classify derives a card type and feature tags from recognized text. The
// caller's hint stands when the text offers no stronger signal.
func Classify(text string, hint models.CardType) (models.CardType, []string) {
	var features []string
	grade := gradeSeen.MatchString(text)
	cert := certSeen.MatchString(text)
	if yearSeen.MatchString(text) {
		features = append(features, "year")
	}
	if grade {
		features = append(features, "grade")
	}
	if cert {
		features = append(features, "cert")
	}
	japanese := containsJapanese(text)
	if japanese {
		features = append(features, "japanese-text")
	}

	switch {
	case grade && cert:
		// A grade plus a certification number only appears on slab labels.
		return models.CardTypePSALabel, features
	case japanese:
		return models.CardTypeJapanese, features
	case latinSeen.MatchString(text):
		return models.CardTypeEnglish, features
	default:
		return hint, features
	}
}

func containsJapanese(text string) bool {
	for _, r := range text {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return true
		}
	}
	return false
}
