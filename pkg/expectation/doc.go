// Package expectation holds the rules that decide what the mock server answers.
//
// An expectation pairs a list of predicates (all must match) with a canned
// Response and an optional Limiter. Expectations live on a Stack and are
// evaluated newest first: the most recently registered expectation that
// accepts a request wins. A Limiter caps how many times an expectation may
// match; an exhausted expectation is removed the next time it would have
// matched and evaluation falls through to older ones.
package expectation
