package protocol

import "strings"

// VisionTriggers are phrases that suggest the user wants the assistant to look at something.
var VisionTriggers = []string{
	"look at",
	"what do you see",
	"what is this",
	"what's this",
	"can you see",
	"show you",
	"take a look",
	"read this",
	"what am i",
	"looking at",
}

// DetectVisionIntent reports whether text contains any vision trigger phrase.
func DetectVisionIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, trigger := range VisionTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}
