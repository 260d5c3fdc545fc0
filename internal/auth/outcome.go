// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

// OutcomeKind classifies the result of a strategy.
type OutcomeKind int

// Outcome kinds. The zero value is deliberately invalid.
const (
	KindSuccess OutcomeKind = iota + 1
	KindFailure
	KindError
)

func (k OutcomeKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the uniform result of every authentication strategy.
//
// Exactly one of User, Reason or Err is meaningful, selected by Kind.
type Outcome struct {
	Kind   OutcomeKind
	User   *User
	Reason string
	Err    error
}

// OutcomeSuccess reports that the credential identified user.
func OutcomeSuccess(user *User) Outcome {
	return Outcome{Kind: KindSuccess, User: user}
}

// OutcomeFailure reports a rejected credential. reason is shown to the user.
func OutcomeFailure(reason string) Outcome {
	return Outcome{Kind: KindFailure, Reason: reason}
}

// OutcomeError reports an infrastructure failure that must be propagated.
func OutcomeError(err error) Outcome {
	return Outcome{Kind: KindError, Err: err}
}
