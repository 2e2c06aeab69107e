package validation

// Stream content rules. Typed decoding catches shape errors; these cover presence and ranges.
var (
	VoiceRules = []Rule{
		{
			Name:       "voice.tracks",
			Expression: `has(content.tracks) && size(content.tracks) > 0`,
			Message:    "voice content needs at least one track",
		},
		{
			Name:       "voice.text",
			Expression: `content.tracks.all(t, has(t.text) && t.text != "")`,
			Message:    "every voice track needs text",
		},
		{
			Name:       "voice.speaker",
			Expression: `content.tracks.all(t, has(t.voiceId) && t.voiceId != "")`,
			Message:    "every voice track needs a voiceId",
		},
		{
			Name:       "voice.speed",
			Expression: `content.tracks.all(t, !has(t.speed) || type(t.speed) != double || (t.speed > 0.0 && t.speed <= 4.0))`,
			Message:    "voice speed must be in (0, 4]",
		},
	}

	MusicRules = []Rule{
		{
			Name:       "music.cue",
			Expression: `(has(content.prompt) && content.prompt != "") || (has(content.generatedUrl) && content.generatedUrl != "")`,
			Message:    "music needs a prompt or a generatedUrl",
		},
		{
			Name:       "music.targetDuration",
			Expression: `!has(content.targetDuration) || type(content.targetDuration) != double || content.targetDuration > 0.0`,
			Message:    "music targetDuration must be positive",
		},
	}

	SFXRules = []Rule{
		{
			Name:       "sfx.cues",
			Expression: `has(content.cues) && size(content.cues) > 0`,
			Message:    "sfx content needs at least one cue",
		},
		{
			Name:       "sfx.placement",
			Expression: `content.cues.all(c, has(c.placement) || has(c.playAfter))`,
			Message:    "every sfx cue needs a placement or playAfter",
		},
		{
			Name:       "sfx.description",
			Expression: `content.cues.all(c, (has(c.description) && c.description != "") || (has(c.generatedUrl) && c.generatedUrl != ""))`,
			Message:    "every sfx cue needs a description or a generatedUrl",
		},
	}
)

// RulesFor returns the rule set for a stream name, or nil for unknown streams
func RulesFor(stream string) []Rule {
	switch stream {
	case "voice":
		return VoiceRules
	case "music":
		return MusicRules
	case "sfx":
		return SFXRules
	default:
		return nil
	}
}
