package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes_ValueScan(t *testing.T) {
	in := Attributes{"Chill", "Coffee Lover", "Gamer", "Night Owl"}

	v, err := in.Value()
	require.NoError(t, err)
	assert.Equal(t, `["Chill","Coffee Lover","Gamer","Night Owl"]`, v)

	var out Attributes
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)

	require.NoError(t, out.Scan([]byte(`["Dreamer"]`)))
	assert.Equal(t, Attributes{"Dreamer"}, out)
}

func TestAttributes_ScanLegacyAndEmpty(t *testing.T) {
	var a Attributes

	require.NoError(t, a.Scan("Chill, Gamer ,,Foodie"))
	assert.Equal(t, Attributes{"Chill", "Gamer", "Foodie"}, a)

	require.NoError(t, a.Scan(""))
	assert.Nil(t, a)

	require.NoError(t, a.Scan(nil))
	assert.Nil(t, a)

	assert.Error(t, a.Scan(42))
	assert.Error(t, a.Scan("[broken"))

	v, err := Attributes(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestVocabulary(t *testing.T) {
	assert.Len(t, AttributeVocabulary, 25)
	assert.True(t, IsAttribute("Tech-savvy"))
	assert.False(t, IsAttribute("tech-savvy"), "vocabulary is case-sensitive")
}

func TestEnums(t *testing.T) {
	assert.True(t, VoiceFemale.Valid())
	assert.False(t, VoiceType("ROBOT").Valid())
	assert.True(t, ConnectionNegative.Valid())
	assert.False(t, ConnectionStatus("maybe").Valid())
}

func TestProfileUpdateIsEmpty(t *testing.T) {
	assert.True(t, ProfileUpdate{}.IsEmpty())
	city := "Oslo"
	assert.False(t, ProfileUpdate{City: &city}.IsEmpty())
}
