package asset

import (
	"fmt"
	"strings"
)

// AspectRatio is one of the frame shapes the remote model accepts.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectPortrait  AspectRatio = "3:4"
	AspectLandscape AspectRatio = "4:3"
	AspectWide      AspectRatio = "16:9"
	AspectTall      AspectRatio = "9:16"
)

// DefaultAspectRatio is used when nothing else is configured.
const DefaultAspectRatio = AspectSquare

// AspectRatios lists the supported ratios in display order.
var AspectRatios = []AspectRatio{AspectSquare, AspectPortrait, AspectLandscape, AspectWide, AspectTall}

// Valid reports whether r is a supported ratio.
func (r AspectRatio) Valid() bool {
	for _, known := range AspectRatios {
		if r == known {
			return true
		}
	}
	return false
}

// Label returns the UI label for the ratio.
func (r AspectRatio) Label() string {
	switch r {
	case AspectSquare:
		return "Square"
	case AspectPortrait:
		return "Portrait"
	case AspectLandscape:
		return "Landscape"
	case AspectWide:
		return "Wide"
	case AspectTall:
		return "Tall"
	default:
		return string(r)
	}
}

// ParseAspectRatio validates s.
func ParseAspectRatio(s string) (AspectRatio, error) {
	r := AspectRatio(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("asset: unsupported aspect ratio %q", s)
	}
	return r, nil
}

// StyleNone disables the style prefix.
const StyleNone = "None"

// DefaultStyle is the style preselected in a fresh session.
const DefaultStyle = "Cinematic"

// Styles lists the artistic styles offered in the UI.
var Styles = []string{
	"Photorealistic",
	"Cinematic",
	"Anime",
	"Cyberpunk",
	"Oil Painting",
	"3D Render",
	"Sketch",
	"Watercolor",
	"Pixel Art",
}

// ParseStyle normalizes s to a catalog style (case-insensitive) or StyleNone.
// Empty input means StyleNone.
func ParseStyle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, StyleNone) {
		return StyleNone, nil
	}
	for _, style := range Styles {
		if strings.EqualFold(s, style) {
			return style, nil
		}
	}
	return "", fmt.Errorf("asset: unknown style %q", s)
}

// PromptExamples are the canned suggestions shown under the prompt box.
var PromptExamples = []string{
	"A futuristic city with neon lights and flying cars, cyberpunk style",
	"A cute cat astronaut floating in space, digital art",
	"A serene Japanese garden with cherry blossoms, watercolor",
	"Portrait of a warrior princess in golden armor, cinematic lighting",
	"A cozy cabin in the snowy woods at night, warm light",
}
