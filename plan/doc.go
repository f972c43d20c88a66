// Package plan parses generated itineraries into ordered, typed steps.
//
// Meeting plans arrive either as sentence-per-step text ("You travel to ...
// in 15 minutes.") or as structured records; trip plans arrive as day-range
// and flight lines. Parsing is purely syntactic: feasibility is the job of
// the validate package.
//
// Generator responses carry a marker ("SOLUTION:" or "PLAN:") before the
// plan; ExtractBody and ExtractCandidates cut the plan text out of the
// surrounding prose.
package plan
