package refine

import (
	"fmt"
	"strings"

	"github.com/zero-day-ai/itinerary/plan"
)

// Prompt renders req as a user message for a chat model. Generators are
// free to build their own prompt instead.
func (r Request) Prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "STEP %d/%d\n\n", r.Iteration, r.MaxSteps)
	b.WriteString("You have been asked to solve the following planning task:\nTASK:\n")
	b.WriteString(r.Task)
	b.WriteString("\n\nYour current best plan is:\n")
	b.WriteString(r.CurrentPlan)
	b.WriteString("\n\n")
	if r.Feedback != "" {
		b.WriteString(r.Feedback)
		b.WriteString("\n\n")
	}

	b.WriteString("OUTPUT FORMAT:\n\n")
	if r.Candidates > 1 {
		fmt.Fprintf(&b, "Output the keyword %s followed by %d different plans separated by '%s'. Do not number the plans or add headers.\n\n",
			r.Marker, r.Candidates, plan.CandidateSeparator)
		fmt.Fprintf(&b, "%s\n<insert first plan>\n%s\n<insert second plan>\n%s\n...\n",
			r.Marker, plan.CandidateSeparator, plan.CandidateSeparator)
	} else {
		fmt.Fprintf(&b, "Output the keyword %s followed by your complete plan:\n\n%s\n<your plan here>\n", r.Marker, r.Marker)
	}
	return b.String()
}
