// Package emotion defines the closed set of facial emotion labels, their emoji
// and the selection of a dominant label from per-face confidence scores.
package emotion

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Label is one of the fixed emotion labels.
type Label string

// Emotion labels in canonical order.
const (
	Happy    Label = "happy"
	Angry    Label = "angry"
	Surprise Label = "surprise"
	Sad      Label = "sad"
	Disgust  Label = "disgust"
	Fear     Label = "fear"
	Neutral  Label = "neutral"
)

// Placeholder is shown whenever no emotion is selected.
const Placeholder = "❓"

// Fixed status strings.
const (
	StatusDetecting     = "Detecting..."
	StatusNoFace        = "No face detected"
	StatusLowConfidence = "Face detected, but low confidence"
	StatusGrabFailed    = "Failed to grab frame."
)

// canonical is the tie-break order and the order of the emoji table.
var canonical = [...]Label{Happy, Angry, Surprise, Sad, Disgust, Fear, Neutral}

var emoji = map[Label]string{
	Happy:    "😄",
	Angry:    "😠",
	Surprise: "😲",
	Sad:      "😢",
	Disgust:  "🤢",
	Fear:     "😨",
	Neutral:  "😐",
}

// ScoreMap maps an emotion label to a confidence score in [0, 1].
type ScoreMap map[Label]float64

// Labels returns the labels in canonical order.
func Labels() []Label {
	out := make([]Label, len(canonical))
	copy(out, canonical[:])
	return out
}

// ParseLabel returns the Label named by s.
func ParseLabel(s string) (Label, bool) {
	l := Label(s)
	_, ok := emoji[l]
	return l, ok
}

// Select returns the label with the highest strictly positive score.
// Ties resolve to the label that comes first in canonical order.
// The second result is false when no label has a positive score.
func Select(scores ScoreMap) (Label, bool) {
	var (
		best  Label
		top   float64
		found bool
	)
	for _, l := range canonical {
		s, ok := scores[l]
		if !ok || s <= 0 {
			continue
		}
		if !found || s > top {
			best, top, found = l, s, true
		}
	}
	return best, found
}

// Emoji returns the glyph for l, or Placeholder for unknown labels.
func Emoji(l Label) string {
	if g, ok := emoji[l]; ok {
		return g
	}
	return Placeholder
}

// Capitalized returns the label with its first letter upper-cased.
// A Caser holds state, so one is created per call.
func (l Label) Capitalized() string {
	return cases.Title(language.English).String(string(l))
}

// StatusText formats a selected label and its score, e.g. "Happy (80.0%)".
func StatusText(l Label, score float64) string {
	return fmt.Sprintf("%s (%.1f%%)", l.Capitalized(), score*100)
}
