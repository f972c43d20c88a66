// Package refine improves generated plans through checker feedback.
//
// A Loop sends a Request to a Generator, splits the response into
// candidate plans after the checker's marker, checks each candidate and
// keeps the one with the fewest violations. Its violations become the
// feedback of the next request. The loop stops when the acceptance policy
// passes or the step budget is spent.
//
// The Generator is the seam to a language model; this package ships no
// model client. Requests can be rendered as a chat prompt with
// Request.Prompt.
//
//	loop, err := refine.NewTrip(gen, refine.TripChecker{Trip: trip},
//	    refine.WithRateLimit(2, 1))
//	if err != nil {
//	    return err
//	}
//	res, err := loop.Run(ctx, task)
package refine
