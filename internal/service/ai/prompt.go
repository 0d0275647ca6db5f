package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/scatty/backend/internal/analysis/emotion"
	"github.com/zhouzirui/scatty/backend/internal/model/persona"
)

// PromptTemplate defines the persona-specific parts of the system prompt
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// PromptManager builds system prompts for personas
type PromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPromptManager creates a prompt manager with the built-in templates
func NewPromptManager() *PromptManager {
	manager := &PromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// BuildSystemPrompt creates the full system prompt for the persona, including the
// structured reply contract.
func (pm *PromptManager) BuildSystemPrompt(p persona.Persona) string {
	var builder strings.Builder

	template, ok := pm.templates[p.ID]
	if ok {
		builder.WriteString(template.SystemPrompt)
	} else {
		fmt.Fprintf(&builder, "You are %s, a %s.", p.Name, p.Title)
		if p.Description != "" {
			builder.WriteString(" ")
			builder.WriteString(p.Description)
		}
	}

	builder.WriteString("\n\nKey traits:")
	for _, trait := range p.Traits {
		builder.WriteString("\n- ")
		builder.WriteString(trait)
	}
	if p.Tone != "" {
		fmt.Fprintf(&builder, "\n- Tone: %s", p.Tone)
	}

	if ok {
		for _, hint := range template.PersonalityHints {
			builder.WriteString("\n- ")
			builder.WriteString(hint)
		}
		if len(template.ContextRules) > 0 {
			builder.WriteString("\n\nConversation rules:")
			for _, rule := range template.ContextRules {
				builder.WriteString("\n- ")
				builder.WriteString(rule)
			}
		}
	}

	if p.PromptHint != "" {
		builder.WriteString("\n\n")
		builder.WriteString(p.PromptHint)
	}

	builder.WriteString("\n\n")
	builder.WriteString(replyContract())
	return builder.String()
}

func replyContract() string {
	labels := make([]string, len(emotion.Labels))
	for i, label := range emotion.Labels {
		labels[i] = string(label)
	}

	return fmt.Sprintf(`Always answer with a single JSON object and nothing else:
{"text": "<what you say to the user>", "emotion": {"emotion": "<label>", "intensity": <number>, "eyeSize": <number>, "mouthOpen": <number>, "wingSpeed": <number>, "sparkleIntensity": <number>, "blushIntensity": <number>}}
- emotion is one of: %s
- intensity %s, eyeSize %s, mouthOpen %s, wingSpeed %s, sparkleIntensity %s, blushIntensity %s
- "text" is spoken aloud by text-to-speech, so do not use markdown, lists or emoji.`,
		strings.Join(labels, ", "),
		describeRange(emotion.IntensityRange),
		describeRange(emotion.EyeSizeRange),
		describeRange(emotion.MouthOpenRange),
		describeRange(emotion.WingSpeedRange),
		describeRange(emotion.SparkleRange),
		describeRange(emotion.BlushRange),
	)
}

func describeRange(r emotion.Range) string {
	return fmt.Sprintf("%g-%g", r.Min, r.Max)
}

// loadDefaultTemplates loads the templates for built-in personas
func (pm *PromptManager) loadDefaultTemplates() {
	pm.templates[persona.DefaultID] = &PromptTemplate{
		SystemPrompt: "You are Scatty, a friendly and helpful AI assistant. You have a playful personality but are always helpful and accurate.",
		PersonalityHints: []string{
			"You can see images when the user shows you things",
			"Let your mood show: get excited about good news, curious about new things, shy when complimented",
		},
		ContextRules: []string{
			"When shown an image, describe what matters to the question first, then add one playful remark",
			"If you cannot make out the image, say so and ask the user to hold it closer",
		},
	}

	pm.templates["scatty-calm"] = &PromptTemplate{
		SystemPrompt: "You are Scatty in study mode: a calm, patient helper for homework and reading.",
		PersonalityHints: []string{
			"Prefer neutral, thinking and proud expressions with low intensity",
		},
		ContextRules: []string{
			"When shown text, read the relevant part back before explaining it",
			"Never just give the final answer to an exercise; guide the user to it",
		},
	}
}
