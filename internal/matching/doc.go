// Package matching implements the predicate language used by expectations.
//
// A Predicate is the declarative, serializable form of a match rule. It is
// compiled once into a Matcher, which is evaluated against a normalized
// Request view for every dispatched request. Supported conditions:
//
//   - Method: case-insensitive equality
//   - Path: exact paths, wildcards, named segments, RE2 patterns and doublestar globs
//   - Headers: exact values and wildcard patterns
//   - Query parameters and decoded form fields: exact values
//   - Body: equality, substring, RE2 pattern, JSONPath, XPath and JSON Schema
//   - JWT claims from an unverified bearer token
//   - expr-lang expressions for anything the fields above cannot express
//
// Predicates compose with All, Any and Not. A list of matchers is combined
// with MatchAll, which short-circuits on the first rejection.
package matching
