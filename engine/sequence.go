/*
sequence.go - Collision-safe document number proposals

PURPOSE:
  Produces the next human-readable document number (e.g. Q-2025-0007)
  from a stored counter value. The allocator never mutates the counter:
  it returns a proposal, and the caller's transaction either commits it
  under a uniqueness constraint or reports a conflict.

NUMBER FORMAT GRAMMAR:
  A fixed, non-user-authored micro-language, deliberately separate from
  the {{...}} template engine:
    {YYYY}     4-digit year
    {YY}       2-digit year
    {MM}       zero-padded month
    {seq}      counter value, unpadded
    {seq:0Nd}  counter value, zero-padded to N digits
    {name}     looked up in the context vars; left literal if absent
  Any other literal text passes through unchanged.

CONFLICT PROTOCOL (executed by the caller):
  1. Propose a number from the current counter.
  2. Persist the document; the unique index on the number is the actual
     mutual-exclusion mechanism.
  3. On a uniqueness violation, increment the counter by one, re-invoke
     Propose with the refreshed value, and retry the persist exactly once.
  4. If the retry also conflicts, surface ErrNumberConflict to the
     operator instead of looping.

SEE ALSO:
  - store.go: CounterStore and DocumentStore interfaces
  - api: the generate handler implements the commit side
*/
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// formatToken matches one {token} in a number format. Group 1 is the
// token name, group 2 the optional zero-pad width for {seq:0Nd}.
var formatToken = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(?::0(\d+)d)?\}`)

// Allocator proposes document numbers. The zero value uses the wall
// clock; tests inject Now for deterministic years.
type Allocator struct {
	Now func() time.Time
}

// Propose renders the format template against the given counter value.
// Deterministic given (format, counter, vars) and the clock, so it is
// safe to compute speculatively before a transaction commits.
func (a *Allocator) Propose(format string, counter int64, vars map[string]string) SequenceAllocation {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}

	number := formatToken.ReplaceAllStringFunc(format, func(tok string) string {
		m := formatToken.FindStringSubmatch(tok)
		name, width := m[1], m[2]
		switch name {
		case "YYYY":
			return fmt.Sprintf("%04d", now.Year())
		case "YY":
			return fmt.Sprintf("%02d", now.Year()%100)
		case "MM":
			return fmt.Sprintf("%02d", int(now.Month()))
		case "seq":
			if width != "" {
				w, _ := strconv.Atoi(width)
				return fmt.Sprintf("%0*d", w, counter)
			}
			return strconv.FormatInt(counter, 10)
		}
		if v, ok := vars[name]; ok {
			return v
		}
		return tok
	})

	return SequenceAllocation{
		ProposedNumber:       number,
		CounterValueConsumed: counter,
	}
}

// ValidateFormat reports a configuration error for formats that can
// never yield unique numbers (no sequence token at all).
func ValidateFormat(format string) error {
	if !strings.Contains(format, "{seq") {
		return NewError(KindConfiguration,
			"number format %q has no {seq} token", format)
	}
	return nil
}
