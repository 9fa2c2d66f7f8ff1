package domain

import "strings"

// anchorOpen and anchorClose delimit clickable vocabulary spans inside
// corrected sentences, e.g. "我喜欢[[苹果]]".
const (
	anchorOpen  = "[["
	anchorClose = "]]"
)

// Segment is one run of feedback text, either plain or an anchored
// vocabulary span the UI renders as a dictionary-lookup trigger.
type Segment struct {
	Text     string `json:"text"`
	Anchored bool   `json:"anchored"`
}

// SplitAnchors splits an anchored sentence into plain and anchored segments.
// An unmatched marker is kept as literal text, and empty spans are dropped.
func SplitAnchors(s string) []Segment {
	var segments []Segment
	for s != "" {
		open := strings.Index(s, anchorOpen)
		if open < 0 {
			segments = appendSegment(segments, s, false)
			break
		}

		rest := s[open+len(anchorOpen):]
		end := strings.Index(rest, anchorClose)
		if end < 0 {
			segments = appendSegment(segments, s, false)
			break
		}

		segments = appendSegment(segments, s[:open], false)
		segments = appendSegment(segments, rest[:end], true)
		s = rest[end+len(anchorClose):]
	}
	return segments
}

// AnchoredWords returns the anchored spans of a sentence in order.
func AnchoredWords(s string) []string {
	var words []string
	for _, segment := range SplitAnchors(s) {
		if segment.Anchored {
			words = append(words, segment.Text)
		}
	}
	return words
}

func appendSegment(segments []Segment, text string, anchored bool) []Segment {
	if text == "" {
		return segments
	}
	return append(segments, Segment{Text: text, Anchored: anchored})
}
