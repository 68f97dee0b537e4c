package domain

// DefaultSuccessText is returned when a generation succeeds without a
// message from the workflow.
const DefaultSuccessText = "Your animation has been generated successfully!"

// GenerationResult is the normalized, transient view of an upstream workflow
// response. Every field is optional; an empty string means "absent".
type GenerationResult struct {
	VideoURL          string
	Text              string
	NonAnimationReply string
}

// IsNonAnimation reports whether the workflow declined to animate the prompt.
// A non-animation reply takes precedence over any video URL.
func (r GenerationResult) IsNonAnimation() bool { return r.NonAnimationReply != "" }

// Outcome is what the generation flow hands back to the transport layer.
type Outcome struct {
	Text     string
	VideoURL string
	Cached   bool
}
