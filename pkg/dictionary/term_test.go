package dictionary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTermVariants(t *testing.T) {
	tests := []struct {
		name     string
		headword string
		reading  string
		ok       bool
		variant  TermVariant
	}{
		{"both blank", "", "", false, 0},
		{"both whitespace", "  \t", "\n ", false, 0},
		{"headword only", "食べる", "", true, TermHeadword},
		{"headword with blank reading", "食べる", "   ", true, TermHeadword},
		{"reading only", "", "たべる", true, TermReading},
		{"full", "食べる", "たべる", true, TermFull},
		{"full with padding", " 食べる ", "\tたべる", true, TermFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term, ok := NewTerm(tt.headword, tt.reading)
			require.Equal(t, tt.ok, ok)
			if !ok {
				assert.False(t, term.IsValid())
				return
			}
			assert.Equal(t, tt.variant, term.Variant())
		})
	}
}

func TestTermAccessorsTrim(t *testing.T) {
	term := MustTerm(" 食べる ", " たべる ")
	h, ok := term.Headword()
	require.True(t, ok)
	assert.Equal(t, "食べる", h)
	r, ok := term.Reading()
	require.True(t, ok)
	assert.Equal(t, "たべる", r)
}

func TestTermPromotion(t *testing.T) {
	term, ok := HeadwordTerm("猫")
	require.True(t, ok)
	_, hasReading := term.Reading()
	assert.False(t, hasReading)

	assert.False(t, term.SetReading("  "))
	assert.Equal(t, TermHeadword, term.Variant())

	assert.True(t, term.SetReading("ねこ"))
	assert.Equal(t, TermFull, term.Variant())
	assert.Equal(t, MustTerm("猫", "ねこ"), term)

	term2, ok := ReadingTerm("いぬ")
	require.True(t, ok)
	assert.True(t, term2.SetHeadword("犬"))
	assert.Equal(t, MustTerm("犬", "いぬ"), term2)
}

func TestTermStructuralEquality(t *testing.T) {
	a := MustTerm("犬", "いぬ")
	b := MustTerm(" 犬", "いぬ ")
	assert.Equal(t, a, b)

	seen := map[Term]int{a: 1}
	assert.Equal(t, 1, seen[b])

	h := MustTerm("犬", "")
	assert.NotEqual(t, a, h)
}

func TestTermNFC(t *testing.T) {
	// "か" + combining dakuten normalizes to "が".
	term := MustTerm("が", "")
	h, _ := term.Headword()
	assert.Equal(t, "が", h)
}

func TestTermString(t *testing.T) {
	assert.Equal(t, "犬[いぬ]", MustTerm("犬", "いぬ").String())
	assert.Equal(t, "犬", MustTerm("犬", "").String())
	assert.Equal(t, "[いぬ]", MustTerm("", "いぬ").String())
}
