package prompts

// defaultTemplates is the library seeded on first use, before any
// user-defined templates exist.
func defaultTemplates() map[string]map[string]string {
	return map[string]map[string]string{
		"genres": {
			"synthwave":  "A cyber-noir synthwave track with heavy bass and slow tempo",
			"ambient":    "A peaceful ambient soundscape with ethereal pads and gentle textures",
			"lofi":       "A lo-fi hip hop beat with vinyl crackle and mellow piano",
			"dubstep":    "An aggressive dubstep track with heavy bass drops and electronic elements",
			"jazz":       "A smooth jazz composition with saxophone and walking bass",
			"rock":       "An energetic rock track with electric guitar and powerful drums",
			"classical":  "A classical orchestral piece with strings and woodwinds",
			"electronic": "An electronic dance track with synthesizers and rhythmic beats",
			"metal":      "A heavy metal track with distorted guitars and fast drums",
			"reggae":     "A reggae track with offbeat rhythm and bass guitar",
		},
		"moods": {
			"energetic":   "An energetic and upbeat track",
			"melancholic": "A melancholic and emotional piece",
			"mysterious":  "A mysterious and atmospheric composition",
			"uplifting":   "An uplifting and inspiring melody",
			"dark":        "A dark and brooding soundscape",
			"peaceful":    "A peaceful and calming track",
			"intense":     "An intense and powerful composition",
			"dreamy":      "A dreamy and ethereal soundscape",
		},
		"instruments": {
			"piano":       "A piano-focused composition",
			"guitar":      "A guitar-driven track",
			"drums":       "A drum-heavy rhythm track",
			"strings":     "An orchestral strings arrangement",
			"synthesizer": "A synthesizer-based electronic track",
			"bass":        "A bass-heavy track with deep low frequencies",
		},
		"styles": {
			"cinematic":  "A cinematic soundtrack suitable for film",
			"video_game": "A video game music track with retro elements",
			"background": "A background music track for content creation",
			"focus":      "A focus music track for productivity",
			"meditation": "A meditation and relaxation track",
		},
		"presets": {
			"cyberpunk": "A cyberpunk-themed track with synthesizers, heavy bass, and futuristic elements",
			"space":     "A space-themed ambient track with ethereal pads and cosmic textures",
			"forest":    "A nature-inspired track with organic sounds and ambient textures",
			"city":      "An urban soundscape with electronic elements and rhythmic patterns",
			"ocean":     "An ocean-themed ambient track with flowing textures and deep bass",
		},
	}
}

// themeVariations are the opening phrases used when constructing themed
// prompts. Each takes the theme as its single argument.
var themeVariations = []string{
	"A %s track with",
	"An energetic %s song featuring",
	"A mellow %s composition with",
	"A dark %s piece with",
	"An uplifting %s melody with",
	"A cinematic %s soundtrack with",
	"A rhythmic %s beat with",
	"An atmospheric %s soundscape with",
	"A powerful %s anthem with",
	"A gentle %s ballad with",
}

// themeElements close a themed prompt with a concrete musical element.
var themeElements = []string{
	"heavy bass",
	"synthesizers",
	"drums",
	"piano",
	"strings",
	"guitar",
	"electronic elements",
	"ambient textures",
	"rhythmic patterns",
	"melodic hooks",
}
