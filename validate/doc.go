// Package validate checks parsed itineraries against a constraint model.
//
// Meeting plans are checked by simulating the day step by step. Two entry
// points share that simulator: Run and Violations collect every broken rule
// for feedback, while Score stops at the first broken rule and returns the
// number of meetings completed before it, for grading against a golden plan.
// CheckTrip checks reconstructed multi-city stays.
//
// Every function here is pure: each call builds a fresh simulation state
// and only reads the Problem, so calls may run concurrently.
package validate
