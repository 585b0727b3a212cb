// Package fragment extracts structured data from the HTML fragments the
// remote planner embeds in its JSON envelopes.
//
// Two interchangeable strategies implement Parser: a tree strategy built on
// goquery and a regex strategy that scans markup with bounded patterns.
// Select picks one at startup, probing the tree strategy when asked for
// "auto". Call sites depend on the Parser interface only.
//
// Every entry point is total. A failure inside a strategy is recovered,
// reported as an error wrapping services.ErrParse, and paired with an empty
// result so the caller can record a warning and keep going.
package fragment
