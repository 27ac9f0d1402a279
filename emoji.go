package presence

import (
	"strconv"
	"strings"

	"github.com/rivo/uniseg"
)

const (
	zeroWidthJoiner    = '\u200d'
	variationSelector  = '\ufe0f'
	combiningKeycap    = '\u20e3'
	regionalIndicatorA = 0x1f1e6
	regionalIndicatorZ = 0x1f1ff
)

// TextSegment is either plain text or a single emoji rendered as an image.
type TextSegment struct {
	Text     string `json:"text"`
	EmojiURL string `json:"emoji_url,omitempty"`
}

// IsEmoji reports whether the segment should be rendered as an image.
func (segment TextSegment) IsEmoji() bool {
	return segment.EmojiURL != ""
}

// ReplaceEmoji splits text into grapheme clusters and swaps every Unicode
// emoji cluster for its Twemoji image. Adjacent plain clusters are merged.
func ReplaceEmoji(text string) []TextSegment {
	if text == "" {
		return nil
	}

	segments := make([]TextSegment, 0, 1)

	var plain strings.Builder

	flush := func() {
		if plain.Len() > 0 {
			segments = append(segments, TextSegment{Text: plain.String()})
			plain.Reset()
		}
	}

	graphemes := uniseg.NewGraphemes(text)
	for graphemes.Next() {
		cluster := graphemes.Str()

		if !isEmojiCluster(graphemes.Runes()) {
			plain.WriteString(cluster)

			continue
		}

		flush()

		segments = append(segments, TextSegment{
			Text:     cluster,
			EmojiURL: TwemojiURL(cluster),
		})
	}

	flush()

	return segments
}

// TwemojiURL returns the Twemoji image for an emoji cluster. Variation
// selectors are dropped unless the sequence is joined with ZWJ, matching how
// the Twemoji asset set is named.
func TwemojiURL(cluster string) string {
	keepSelectors := strings.ContainsRune(cluster, zeroWidthJoiner)

	codepoints := make([]string, 0, len(cluster))

	for _, r := range cluster {
		if r == variationSelector && !keepSelectors {
			continue
		}

		codepoints = append(codepoints, strconv.FormatInt(int64(r), 16))
	}

	return TwemojiBaseURL + strings.Join(codepoints, "-") + ".png"
}

func isEmojiCluster(runes []rune) bool {
	for _, r := range runes {
		switch {
		case r == variationSelector, r == combiningKeycap:
			return true
		case r >= regionalIndicatorA && r <= regionalIndicatorZ:
			return true
		case r >= 0x1f000 && r <= 0x1faff:
			return true
		case r >= 0x2600 && r <= 0x27bf:
			return true
		case r >= 0x2300 && r <= 0x23ff:
			return true
		case r >= 0x2b00 && r <= 0x2bff:
			return true
		case r == 0x00a9, r == 0x00ae, r == 0x203c, r == 0x2049, r == 0x2122, r == 0x3030, r == 0x303d:
			return true
		}
	}

	return false
}
