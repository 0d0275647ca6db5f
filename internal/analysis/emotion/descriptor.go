package emotion

import (
	"math"
	"strings"
)

// Label 表示头像可以渲染的情绪类别。
type Label string

const (
	Neutral   Label = "neutral"
	Happy     Label = "happy"
	Excited   Label = "excited"
	Curious   Label = "curious"
	Thinking  Label = "thinking"
	Surprised Label = "surprised"
	Concerned Label = "concerned"
	Playful   Label = "playful"
	Proud     Label = "proud"
	Shy       Label = "shy"
)

// Labels lists every label in declaration order.
var Labels = []Label{Neutral, Happy, Excited, Curious, Thinking, Surprised, Concerned, Playful, Proud, Shy}

// Range is an inclusive numeric bound for one expressiveness parameter.
type Range struct {
	Min float64
	Max float64
}

// Clamp 将数值限制在区间内，NaN 视为下界。
func (r Range) Clamp(v float64) float64 {
	if math.IsNaN(v) || v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

var (
	IntensityRange = Range{Min: 0, Max: 1}
	EyeSizeRange   = Range{Min: 0.5, Max: 1.5}
	MouthOpenRange = Range{Min: 0, Max: 1}
	WingSpeedRange = Range{Min: 0.5, Max: 2}
	SparkleRange   = Range{Min: 0, Max: 1}
	BlushRange     = Range{Min: 0, Max: 1}
)

// Descriptor drives the client avatar for one completed assistant turn.
type Descriptor struct {
	Emotion          Label   `json:"emotion"`
	Intensity        float64 `json:"intensity"`
	EyeSize          float64 `json:"eyeSize"`
	MouthOpen        float64 `json:"mouthOpen"`
	WingSpeed        float64 `json:"wingSpeed"`
	SparkleIntensity float64 `json:"sparkleIntensity"`
	BlushIntensity   float64 `json:"blushIntensity"`
}

// Default is used whenever the model omits the descriptor or sends a malformed one.
func Default() Descriptor {
	return Descriptor{
		Emotion:          Neutral,
		Intensity:        0.5,
		EyeSize:          1,
		MouthOpen:        0.3,
		WingSpeed:        1,
		SparkleIntensity: 0.2,
		BlushIntensity:   0,
	}
}

// Wire is the loosely typed shape accepted from peers and models: every numeric field is
// optional and falls back to Default.
type Wire struct {
	Emotion          string   `json:"emotion"`
	Intensity        *float64 `json:"intensity,omitempty"`
	EyeSize          *float64 `json:"eyeSize,omitempty"`
	MouthOpen        *float64 `json:"mouthOpen,omitempty"`
	WingSpeed        *float64 `json:"wingSpeed,omitempty"`
	SparkleIntensity *float64 `json:"sparkleIntensity,omitempty"`
	BlushIntensity   *float64 `json:"blushIntensity,omitempty"`
}

// FromWire validates the label and fills and clamps the numeric parameters. The second
// result is false when the label is not recognised.
func FromWire(w Wire) (Descriptor, bool) {
	label, ok := ParseLabel(w.Emotion)
	if !ok {
		return Default(), false
	}

	d := Default()
	d.Emotion = label
	d.Intensity = pick(w.Intensity, d.Intensity)
	d.EyeSize = pick(w.EyeSize, d.EyeSize)
	d.MouthOpen = pick(w.MouthOpen, d.MouthOpen)
	d.WingSpeed = pick(w.WingSpeed, d.WingSpeed)
	d.SparkleIntensity = pick(w.SparkleIntensity, d.SparkleIntensity)
	d.BlushIntensity = pick(w.BlushIntensity, d.BlushIntensity)
	return d.Normalize(), true
}

// Normalize clamps each parameter into its documented range.
func (d Descriptor) Normalize() Descriptor {
	if _, ok := ParseLabel(string(d.Emotion)); !ok {
		d.Emotion = Neutral
	}
	d.Intensity = IntensityRange.Clamp(d.Intensity)
	d.EyeSize = EyeSizeRange.Clamp(d.EyeSize)
	d.MouthOpen = MouthOpenRange.Clamp(d.MouthOpen)
	d.WingSpeed = WingSpeedRange.Clamp(d.WingSpeed)
	d.SparkleIntensity = SparkleRange.Clamp(d.SparkleIntensity)
	d.BlushIntensity = BlushRange.Clamp(d.BlushIntensity)
	return d
}

var aliases = map[string]Label{
	"calm":         Neutral,
	"joy":          Happy,
	"joyful":       Happy,
	"glad":         Happy,
	"thrilled":     Excited,
	"enthusiastic": Excited,
	"interested":   Curious,
	"pondering":    Thinking,
	"thoughtful":   Thinking,
	"amazed":       Surprised,
	"shocked":      Surprised,
	"worried":      Concerned,
	"sad":          Concerned,
	"sympathetic":  Concerned,
	"silly":        Playful,
	"teasing":      Playful,
	"embarrassed":  Shy,
	"bashful":      Shy,
}

// ParseLabel 解析模型返回的情绪标签，兼容常见同义词。
func ParseLabel(raw string) (Label, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return "", false
	}
	for _, label := range Labels {
		if string(label) == normalized {
			return label, true
		}
	}
	if label, ok := aliases[normalized]; ok {
		return label, true
	}
	return "", false
}

func pick(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
