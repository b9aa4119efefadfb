// Package avatar turns an arbitrary seed string into a deterministic pixel
// character. Everything here is pure: the same seed always yields the same
// descriptor, scene, SVG bytes and PNG pixels.
package avatar

import (
	"unicode/utf16"

	"github.com/rs/xid"
)

// Hash folds the seed's UTF-16 code units into a 32-bit polynomial hash
// (h*31 + c, wrapping) and returns its absolute value. Folding code units
// rather than bytes keeps hashes identical to browser clients that run the
// same fold over a JavaScript string.
//
// The absolute value is returned as uint32 so that math.MinInt32 maps to
// 2^31 instead of staying negative.
func Hash(seed string) uint32 {
	var h int32
	for _, c := range utf16.Encode([]rune(seed)) {
		h = (h << 5) - h + int32(c)
	}
	if h < 0 {
		return uint32(-int64(h))
	}
	return uint32(h)
}

// Slot is one visual choice derived from the hash.
type Slot struct {
	Name  string
	Shift uint
	Size  int
}

// Slots lists every slot in evaluation order. Shifts strictly increase so no
// two slots read exactly the same bits.
var Slots = [...]Slot{
	{"base", 0, len(skinTones)},
	{"eyes", 2, len(eyeStyles)},
	{"eyeColor", 4, len(eyeColors)},
	{"hair", 8, len(hairStyles)},
	{"hairColor", 10, len(hairTones)},
	{"outfit", 12, len(outfitStyles)},
	{"outfitColor", 14, len(outfitColors)},
	{"accessory", 16, len(accessoryStyles)},
	{"accessoryColor", 18, len(gadgetColors)},
}

func (s Slot) index(hash uint32) int {
	return int((hash >> s.Shift) % uint32(s.Size))
}

// Selection holds the palette index picked for each slot.
type Selection struct {
	Base           int `json:"base"`
	Eyes           int `json:"eyes"`
	EyeColor       int `json:"eyeColor"`
	Hair           int `json:"hair"`
	HairColor      int `json:"hairColor"`
	Outfit         int `json:"outfit"`
	OutfitColor    int `json:"outfitColor"`
	Accessory      int `json:"accessory"`
	AccessoryColor int `json:"accessoryColor"`
}

// Select computes every slot index for a hash.
func Select(hash uint32) Selection {
	return Selection{
		Base:           Slots[0].index(hash),
		Eyes:           Slots[1].index(hash),
		EyeColor:       Slots[2].index(hash),
		Hair:           Slots[3].index(hash),
		HairColor:      Slots[4].index(hash),
		Outfit:         Slots[5].index(hash),
		OutfitColor:    Slots[6].index(hash),
		Accessory:      Slots[7].index(hash),
		AccessoryColor: Slots[8].index(hash),
	}
}

// Tone is a main color with its shading variants.
type Tone struct {
	Main      string `json:"main"`
	Shadow    string `json:"shadow"`
	Highlight string `json:"highlight"`
}

// Descriptor is the resolved avatar: the selection plus the style names and
// colors it points at.
type Descriptor struct {
	Seed      string    `json:"seed"`
	Hash      uint32    `json:"hash"`
	Selection Selection `json:"selection"`

	Skin           Tone   `json:"skin"`
	EyeStyle       string `json:"eyeStyle"`
	EyeColor       string `json:"eyeColor"`
	HairStyle      string `json:"hairStyle"`
	Hair           Tone   `json:"hair"`
	OutfitStyle    string `json:"outfitStyle"`
	OutfitColor    string `json:"outfitColor"`
	AccessoryStyle string `json:"accessoryStyle"`
	AccessoryColor string `json:"accessoryColor"`
}

// HasAccessory reports whether the descriptor carries an accessory at all.
func (d Descriptor) HasAccessory() bool {
	return d.Selection.Accessory != 0
}

// Generate resolves a seed into a descriptor. It never fails; the empty seed
// hashes to 0 and yields the first entry of every palette.
func Generate(seed string) Descriptor {
	h := Hash(seed)
	sel := Select(h)
	return Descriptor{
		Seed:           seed,
		Hash:           h,
		Selection:      sel,
		Skin:           skinTones[sel.Base],
		EyeStyle:       eyeStyles[sel.Eyes],
		EyeColor:       eyeColors[sel.EyeColor],
		HairStyle:      hairStyles[sel.Hair],
		Hair:           hairTones[sel.HairColor],
		OutfitStyle:    outfitStyles[sel.Outfit],
		OutfitColor:    outfitColors[sel.OutfitColor],
		AccessoryStyle: accessoryStyles[sel.Accessory],
		AccessoryColor: gadgetColors[sel.AccessoryColor],
	}
}

// RandomSeed returns a fresh opaque seed for the "shuffle" action.
func RandomSeed() string {
	return xid.New().String()
}
