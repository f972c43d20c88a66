package plan

import (
	"strconv"
	"strings"

	"github.com/zero-day-ai/itinerary/clock"
	"github.com/zero-day-ai/itinerary/planerr"
)

// Markers that precede the plan body in a generator response.
const (
	MarkerSolution = "SOLUTION:"
	MarkerPlan     = "PLAN:"

	// CandidateSeparator splits several candidates in one response.
	CandidateSeparator = "---"
)

// ExtractBody returns the trimmed text after the first marker and before the
// next one, or the whole trimmed response when the marker is missing.
func ExtractBody(raw, marker string) string {
	body := raw
	if marker != "" {
		if _, after, ok := strings.Cut(raw, marker); ok {
			body, _, _ = strings.Cut(after, marker)
		}
	}
	return strings.TrimSpace(body)
}

// ExtractCandidates returns the candidate plans in a generator response:
// the body from ExtractBody split on CandidateSeparator, empty pieces
// dropped.
func ExtractCandidates(raw, marker string) []string {
	var out []string
	for _, c := range strings.Split(ExtractBody(raw, marker), CandidateSeparator) {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// SplitSentences drops everything up to and including the first
// MarkerSolution, splits on periods and returns the non-empty trimmed
// sentences.
func SplitSentences(raw string) []string {
	if i := strings.Index(raw, MarkerSolution); i >= 0 {
		raw = raw[i+len(MarkerSolution):]
	}

	var out []string
	for _, s := range strings.Split(raw, ".") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseText splits raw into sentences and parses each one.
func ParseText(raw string) []Step {
	sentences := SplitSentences(raw)
	steps := make([]Step, 0, len(sentences))
	for _, s := range sentences {
		steps = append(steps, ParseSentence(s))
	}
	return steps
}

// ParseSentences parses already split sentences, e.g. a golden plan stored
// as a list.
func ParseSentences(sentences []string) []Step {
	steps := make([]Step, 0, len(sentences))
	for _, s := range sentences {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, ParseSentence(s))
		}
	}
	return steps
}

// ParseSentence parses one sentence by its leading verb. It never fails:
// unknown verbs yield Unrecognized and bad fields yield Malformed.
func ParseSentence(s string) Step {
	switch {
	case strings.HasPrefix(s, "You start"):
		return parseStart(s)
	case strings.HasPrefix(s, "You travel"):
		return parseTravel(s)
	case strings.HasPrefix(s, "You wait"):
		return parseWait(s)
	case strings.HasPrefix(s, "You meet"):
		return parseMeet(s)
	default:
		return Unrecognized{Raw: s}
	}
}

// between returns the text after the first start anchor, cut at the first
// end anchor if present. ok is false when start is missing.
func between(s, start, end string) (string, bool) {
	_, rest, ok := strings.Cut(s, start)
	if !ok {
		return "", false
	}
	if end != "" {
		rest, _, _ = strings.Cut(rest, end)
	}
	return strings.TrimSpace(rest), true
}

// parseStart is best effort; the start sentence carries no state.
func parseStart(s string) Step {
	st := Start{Raw: s}
	rest, ok := between(s, "start at ", "")
	if !ok {
		return st
	}
	if i := strings.LastIndex(rest, " at "); i >= 0 {
		st.Location = strings.TrimSpace(rest[:i])
		if t, err := clock.Parse(rest[i+len(" at "):]); err == nil {
			st.Time = t
		}
	} else {
		st.Location = rest
	}
	return st
}

func parseTravel(s string) Step {
	dest, ok := between(s, "travel to ", " in")
	if !ok || dest == "" {
		return Malformed{Raw: s, Verb: KindTravel, Err: planerr.Parse("parse_step", "travel step without destination: %q", s)}
	}
	tr := Travel{Raw: s, Destination: dest}
	if n, ok := between(s, " in ", " minutes"); ok {
		if m, err := strconv.Atoi(n); err == nil {
			tr.Minutes = m
		}
	}
	return tr
}

func parseWait(s string) Step {
	raw, ok := between(s, "wait until ", ".")
	if !ok {
		return Malformed{Raw: s, Verb: KindWait, Err: planerr.Parse("parse_step", "wait step without target time: %q", s)}
	}
	t, err := clock.Parse(raw)
	if err != nil {
		return Malformed{Raw: s, Verb: KindWait, Err: err}
	}
	return Wait{Raw: s, Until: t, UntilText: raw}
}

func parseMeet(s string) Step {
	person, ok := between(s, "meet ", " for")
	if !ok || person == "" {
		return Malformed{Raw: s, Verb: KindMeet, Err: planerr.Parse("parse_step", "meet step without person: %q", s)}
	}
	n, ok := between(s, " for ", " minutes")
	if !ok {
		return Malformed{Raw: s, Verb: KindMeet, Err: planerr.Parse("parse_step", "meet step without duration: %q", s)}
	}
	minutes, err := strconv.Atoi(n)
	if err != nil {
		return Malformed{Raw: s, Verb: KindMeet, Err: planerr.Parse("parse_step", "invalid meeting duration %q", n).WithCause(err)}
	}
	return Meet{Raw: s, Person: person, Minutes: minutes}
}
