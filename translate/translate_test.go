package translate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, language.Tamil, DetectLanguage("வாடகை agreement"))
	assert.Equal(t, language.English, DetectLanguage("Rental agreement"))
	assert.Equal(t, language.Und, DetectLanguage("12345 !!"))
}

func TestParseTarget(t *testing.T) {
	for in, want := range map[string]language.Tag{
		"ta":    language.Tamil,
		"ta-IN": language.Tamil,
		"en":    language.English,
		"en-GB": language.English,
	} {
		got, err := ParseTarget(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTarget("not a tag!")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestDictionaryRoundTrip(t *testing.T) {
	d := NewDictionary(nil)
	ctx := context.Background()

	res, err := d.Translate(ctx, "RENTAL AGREEMENT\nName: Asha", language.Tamil)
	require.NoError(t, err)
	assert.Equal(t, "வாடகை ஒப்பந்தம்\nபெயர்: Asha", res.Text)
	assert.Equal(t, language.English, res.Source)
	assert.Equal(t, language.Tamil, res.Target)

	back, err := d.Translate(ctx, res.Text, language.English)
	require.NoError(t, err)
	assert.Equal(t, "RENTAL AGREEMENT\nName: Asha", back.Text)
	assert.Equal(t, language.Tamil, back.Source)
}

func TestDictionaryPrefersLongestPhrase(t *testing.T) {
	d := NewDictionary(map[string]string{
		"SERVICE":          "சேவை",
		"SERVICE PROVIDER": "சேவை வழங்குநர்",
	})
	res, err := d.Translate(context.Background(), "SERVICE PROVIDER", language.Tamil)
	require.NoError(t, err)
	assert.Equal(t, "சேவை வழங்குநர்", res.Text)
}

func TestDictionaryUnknownWordsPassThrough(t *testing.T) {
	res, err := NewDictionary(nil).Translate(context.Background(), "Hello, world.", language.Tamil)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world.", res.Text)
}

func TestDictionaryRejectsUnsupportedTarget(t *testing.T) {
	_, err := NewDictionary(nil).Translate(context.Background(), "x", language.French)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestBuiltInPhrasesHaveUniqueTranslations(t *testing.T) {
	seen := map[string]string{}
	for en, ta := range agreementPhrases {
		if prev, ok := seen[ta]; ok {
			t.Fatalf("%q and %q share translation %q", prev, en, ta)
		}
		seen[ta] = en
	}
}
