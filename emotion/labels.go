package emotion

import (
	"fmt"
	"strings"
)

type Label string

const (
	Happy     Label = "happy"
	Sad       Label = "sad"
	Angry     Label = "angry"
	Surprised Label = "surprised"
	Fearful   Label = "fearful"
	Disgusted Label = "disgusted"
	Neutral   Label = "neutral"
)

// Labels is the closed label set in its fixed iteration order. Dominant
// selection and every per-label rendering walk it in this order.
var Labels = []Label{Happy, Sad, Angry, Surprised, Fearful, Disgusted, Neutral}

type Meta struct {
	Name string
	Icon string
}

var meta = map[Label]Meta{
	Happy:     {Name: "Happy", Icon: "😊"},
	Sad:       {Name: "Sad", Icon: "😢"},
	Angry:     {Name: "Angry", Icon: "😠"},
	Surprised: {Name: "Surprised", Icon: "😮"},
	Fearful:   {Name: "Fearful", Icon: "😨"},
	Disgusted: {Name: "Disgusted", Icon: "🤢"},
	Neutral:   {Name: "Neutral", Icon: "😐"},
}

func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := meta[l]; !ok {
		return "", fmt.Errorf("unknown emotion label %q", s)
	}
	return l, nil
}

// Info returns the display name and icon; unknown labels get the raw
// label as name and no icon.
func Info(l Label) Meta {
	if m, ok := meta[l]; ok {
		return m
	}
	return Meta{Name: string(l)}
}

func (l Label) String() string { return string(l) }
