package expectation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/getmockd/httpmock/internal/matching"
)

// Sentinel errors for registration.
var (
	ErrInvalidMatcher  = errors.New("invalid matcher")
	ErrInvalidResponse = errors.New("invalid response")
	ErrInvalidLimiter  = errors.New("invalid limiter")
)

// Predicate is one matching condition of an expectation. Every predicate of
// a definition must accept a request for it to match.
type Predicate = matching.Predicate

// Definition is the serializable form of an expectation as it arrives from
// the control plane or a seed file.
type Definition struct {
	Matcher  []Predicate `json:"matcher,omitempty" yaml:"matcher,omitempty"`
	Response *Response   `json:"response" yaml:"response"`
	Limiter  *Limiter    `json:"limiter,omitempty" yaml:"limiter,omitempty"`
}

// Validate compiles every part of the definition without registering it.
func (d *Definition) Validate() error {
	_, err := compile(d)
	return err
}

// Expectation is a registered rule. Records are owned by the Stack; callers
// only ever see copies.
type Expectation struct {
	ID         string
	Seq        uint64
	Predicates []matching.Predicate
	Response   Response
	Limiter    *Limiter
	MatchCount int
	CreatedAt  time.Time

	matchers []*matching.Matcher
}

// Match is the result of a successful FindMatch.
type Match struct {
	ID       string
	Response Response
	// Count is the record's match count after this match.
	Count int
}

// Stack holds expectations in registration order and evaluates them newest
// first. It is safe for concurrent use.
type Stack struct {
	mu      sync.Mutex
	records []*Expectation // oldest first; evaluation walks from the end
	nextSeq uint64
}

// NewStack creates an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

func compile(d *Definition) (*Expectation, error) {
	matchers, err := matching.CompileAll(d.Matcher)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMatcher, err)
	}
	if d.Response == nil {
		return nil, fmt.Errorf("%w: response is required", ErrInvalidResponse)
	}
	if err := d.Response.Validate(); err != nil {
		return nil, err
	}

	var limiter *Limiter
	if d.Limiter != nil {
		limiter = &Limiter{Times: d.Limiter.Times, Expr: d.Limiter.Expr}
		if limiter.Times != nil {
			n := *limiter.Times
			limiter.Times = &n
		}
		if err := limiter.compile(); err != nil {
			return nil, err
		}
	}

	return &Expectation{
		Predicates: append([]matching.Predicate(nil), d.Matcher...),
		Response:   d.Response.Clone(),
		Limiter:    limiter,
		matchers:   matchers,
	}, nil
}

// Register validates d and pushes it on top of the stack, making it the
// first candidate for subsequent requests. It returns the new expectation ID.
func (s *Stack) Register(d *Definition) (string, error) {
	e, err := compile(d)
	if err != nil {
		return "", err
	}
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now()

	s.mu.Lock()
	e.Seq = s.nextSeq
	s.nextSeq++
	s.records = append(s.records, e)
	s.mu.Unlock()

	return e.ID, nil
}

// FindMatch returns the response of the newest expectation whose predicates
// all accept r and whose limiter still allows a match. Exhausted expectations
// met on the way are removed. Evaluation, counting and removal happen in one
// critical section so a one-shot expectation is never consumed twice.
func (s *Stack) FindMatch(r *matching.Request) (*Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.records) - 1; i >= 0; i-- {
		e := s.records[i]
		if !matching.MatchAll(e.matchers, r) {
			continue
		}
		if e.Limiter != nil && !e.Limiter.allow(e.MatchCount) {
			s.removeAt(i)
			continue
		}
		e.MatchCount++
		return &Match{ID: e.ID, Response: e.Response.Clone(), Count: e.MatchCount}, true
	}
	return nil, false
}

func (s *Stack) removeAt(i int) {
	copy(s.records[i:], s.records[i+1:])
	s.records[len(s.records)-1] = nil
	s.records = s.records[:len(s.records)-1]
}

// Clear removes every expectation.
func (s *Stack) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

// Len returns the number of live expectations.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// List returns copies of all expectations, newest first.
func (s *Stack) List() []Expectation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Expectation, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		e := *s.records[i]
		e.Response = e.Response.Clone()
		e.matchers = nil
		out = append(out, e)
	}
	return out
}
