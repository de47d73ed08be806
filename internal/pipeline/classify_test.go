package pipeline

import (
	"reflect"
	"testing"

	"github.com/cardfolio/cardscan/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		hint         models.CardType
		wantType     models.CardType
		wantFeatures []string
	}{
		{
			name:         "full psa label",
			text:         "1999 POKEMON CHARIZARD GEM MT 10 45678912",
			hint:         models.CardTypeGeneric,
			wantType:     models.CardTypePSALabel,
			wantFeatures: []string{"year", "grade", "cert"},
		},
		{
			name:         "grade without cert stays english",
			text:         "CHARIZARD HOLO PSA 9",
			hint:         models.CardTypeGeneric,
			wantType:     models.CardTypeEnglish,
			wantFeatures: []string{"grade"},
		},
		{
			name:         "japanese text",
			text:         "リザードン ポケモン 1996",
			hint:         models.CardTypeGeneric,
			wantType:     models.CardTypeJapanese,
			wantFeatures: []string{"year", "japanese-text"},
		},
		{
			name:     "plain english name",
			text:     "Dark Blastoise Team Rocket",
			hint:     models.CardTypeGeneric,
			wantType: models.CardTypeEnglish,
		},
		{
			name:     "digits only falls back to hint",
			text:     "4321",
			hint:     models.CardTypePSALabel,
			wantType: models.CardTypePSALabel,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotFeatures := Classify(tt.text, tt.hint)
			if gotType != tt.wantType {
				t.Errorf("type = %q, want %q", gotType, tt.wantType)
			}
			if !reflect.DeepEqual(gotFeatures, tt.wantFeatures) {
				t.Errorf("features = %v, want %v", gotFeatures, tt.wantFeatures)
			}
		})
	}
}
