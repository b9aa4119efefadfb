package avatar

var skinTones = []Tone{
	{"#FFDBAC", "#F1C27D", "#FFE4C4"},
	{"#F1C27D", "#E0AC69", "#F5D0A9"},
	{"#E0AC69", "#8D5524", "#E7BD8B"},
	{"#8D5524", "#5D3A1A", "#A5734D"},
	{"#C68642", "#A06E35", "#D99F66"},
}

var hairTones = []Tone{
	{"#090806", "#000000", "#2C1608"},
	{"#2C1608", "#1A0D05", "#4E2708"},
	{"#B1B1B1", "#8A8A8A", "#D6D6D6"},
	{"#D6B483", "#BFA173", "#E7D1B1"},
	{"#A56B46", "#8B5A3E", "#C48A69"},
}

var eyeColors = []string{"#3B82F6", "#10B981", "#8B5CF6", "#F59E0B", "#EF4444", "#000000"}

var outfitColors = []string{"#3B82F6", "#EF4444", "#10B981", "#F59E0B", "#8B5CF6", "#EC4899"}

var gadgetColors = []string{"#94A3B8", "#475569", "#1E293B", "#F8FAFC", "#DC2626", "#FACC15"}

var eyeStyles = []string{"normal", "wink", "sunglasses", "visor", "determined", "bored"}

var hairStyles = []string{"spiky", "long", "pompadour", "side-swept", "top-knot"}

var outfitStyles = []string{"tee", "hoodie", "tactical", "scarf"}

// Index 0 means no accessory is drawn.
var accessoryStyles = []string{"none", "headphones", "boombox", "note", "wrist-device", "synth-cubes"}

const (
	white = "#FFFFFF"
	black = "#000000"
)
