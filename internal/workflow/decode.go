package workflow

import (
	"bytes"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/tbourn/animai-studio/internal/domain"
)

// PayloadKind tags the shape of an upstream response body.
type PayloadKind int

const (
	// KindObject is a JSON object. Any other JSON value (null, a number, an
	// array, a boolean) is classified as an empty object.
	KindObject PayloadKind = iota
	// KindEncodedObject is a JSON string whose content is itself JSON. Inner
	// values that are not objects become an empty object.
	KindEncodedObject
	// KindText is a body that is not JSON, or a JSON string whose content is
	// not JSON; the text is the reply.
	KindText
)

func (k PayloadKind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindEncodedObject:
		return "encoded-object"
	default:
		return "text"
	}
}

// Payload is a classified upstream response. For the object kinds Raw holds
// JSON object text; for KindText it holds the reply.
type Payload struct {
	Kind PayloadKind
	Raw  string
}

// Rule names one location a field may be found at. Path is a gjson path.
type Rule struct {
	Name string
	Path string
}

// FieldRules lists, per result field, the locations tried in order.
type FieldRules struct {
	VideoURL          []Rule
	Text              []Rule
	NonAnimationReply []Rule
}

// ObjectRules apply to structured object payloads.
var ObjectRules = FieldRules{
	VideoURL: []Rule{
		{Name: "snake", Path: "video_url"},
		{Name: "camel", Path: "videoUrl"},
		{Name: "output.snake", Path: "output.video_url"},
		{Name: "output.camel", Path: "output.videoUrl"},
	},
	Text: []Rule{
		{Name: "text", Path: "text"},
		{Name: "output.text", Path: "output.text"},
		{Name: "message", Path: "message"},
	},
	NonAnimationReply: []Rule{
		{Name: "reply", Path: "non_animation_reply"},
		{Name: "output.reply", Path: "output.non_animation_reply"},
	},
}

// EncodedRules apply to objects that arrived JSON-encoded inside a string.
var EncodedRules = FieldRules{
	VideoURL: []Rule{
		{Name: "snake", Path: "video_url"},
		{Name: "camel", Path: "videoUrl"},
	},
	Text: []Rule{
		{Name: "text", Path: "text"},
	},
	NonAnimationReply: []Rule{
		{Name: "reply", Path: "non_animation_reply"},
	},
}

// Classify determines the kind of an upstream response body.
func Classify(body []byte) Payload {
	trimmed := bytes.TrimSpace(body)
	if !gjson.ValidBytes(trimmed) {
		return Payload{Kind: KindText, Raw: string(body)}
	}
	r := gjson.ParseBytes(trimmed)
	switch {
	case r.IsObject():
		return Payload{Kind: KindObject, Raw: r.Raw}
	case r.Type == gjson.String:
		inner := r.Str
		if !gjson.Valid(inner) {
			return Payload{Kind: KindText, Raw: inner}
		}
		return Payload{Kind: KindEncodedObject, Raw: objectOrEmpty(gjson.Parse(inner))}
	default:
		return Payload{Kind: KindObject, Raw: "{}"}
	}
}

func objectOrEmpty(r gjson.Result) string {
	if r.IsObject() {
		return r.Raw
	}
	return "{}"
}

// Decode classifies body and extracts a GenerationResult from it.
func Decode(body []byte) domain.GenerationResult {
	return Extract(Classify(body))
}

// Extract applies the rule set matching p.Kind. Every field is independent:
// a missing field stays empty.
func Extract(p Payload) domain.GenerationResult {
	var rules FieldRules
	switch p.Kind {
	case KindObject:
		rules = ObjectRules
	case KindEncodedObject:
		rules = EncodedRules
	default:
		return domain.GenerationResult{Text: p.Raw}
	}
	obj := gjson.Parse(p.Raw)
	return domain.GenerationResult{
		VideoURL:          firstString(obj, "video_url", rules.VideoURL),
		Text:              firstString(obj, "text", rules.Text),
		NonAnimationReply: firstString(obj, "non_animation_reply", rules.NonAnimationReply),
	}
}

// firstString returns the first non-empty string found by rules. Values of
// any other JSON type are skipped.
func firstString(obj gjson.Result, field string, rules []Rule) string {
	for _, r := range rules {
		v := obj.Get(r.Path)
		if !v.Exists() {
			continue
		}
		if v.Type != gjson.String {
			log.Debug().Str("field", field).Str("rule", r.Name).Str("type", v.Type.String()).
				Msg("skipping non-string workflow value")
			continue
		}
		if v.Str != "" {
			return v.Str
		}
	}
	return ""
}
