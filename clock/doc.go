// Package clock models wall-clock time on the single implicit day of a
// meeting plan.
//
// A Time is a count of minutes since midnight, so times compare with the
// ordinary operators and meeting arithmetic is plain addition. Text uses
// the 12-hour form of the datasets, e.g. "9:00AM" or "02:30PM".
package clock
