package orchestrator

import (
	"time"
)

// RetryPolicy parameterizes the deterministic backoff applied to transient
// failures: delay(attempt) = min(Initial + Step×(attempt−1), Max). No jitter.
type RetryPolicy struct {
	Initial     time.Duration
	Step        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy mirrors the configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Initial:     time.Minute,
		Step:        time.Minute,
		Max:         5 * time.Minute,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Delay returns the backoff before the given attempt (1-based). The delay is
// monotonically non-decreasing in the attempt number and bounded by Max.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.Initial + p.Step*time.Duration(attempt-1)
	if delay > p.Max {
		return p.Max
	}

	return delay
}

// ActionKind tags the retry manager's decision.
type ActionKind int

// The two possible outcomes for a failed task.
const (
	ActionRetry ActionKind = iota
	ActionDeadLetter
)

// Action is the retry manager's decision for a failed task, modeled as an
// inspectable tagged value rather than exception control flow.
type Action struct {
	Kind   ActionKind
	Delay  time.Duration // set for ActionRetry
	Reason string        // set for ActionDeadLetter
}

// RetryManager owns the retry-or-dead-letter decision.
type RetryManager struct {
	policy RetryPolicy
}

// NewRetryManager creates a RetryManager with the given policy.
func NewRetryManager(policy RetryPolicy) *RetryManager {
	return &RetryManager{policy: policy}
}

// OnFailure decides the fate of a failed task and advances its attempt
// counter in place. Permanent failures dead-letter immediately regardless of
// remaining attempts, since retrying cannot succeed. Transient failures retry
// with the policy's deterministic delay until the attempt budget is spent.
func (m *RetryManager) OnFailure(task *Task, failure error) Action {
	if IsPermanent(failure) {
		return Action{Kind: ActionDeadLetter, Reason: failure.Error()}
	}

	maxAttempts := task.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = m.policy.MaxAttempts
	}

	task.Attempt++

	if task.Attempt >= maxAttempts {
		return Action{Kind: ActionDeadLetter, Reason: failure.Error()}
	}

	return Action{Kind: ActionRetry, Delay: m.policy.Delay(task.Attempt)}
}

// RequeueDelay is the pause before redelivering a delivery that could not be
// settled, such as when the dead-letter store is down. Reuses the policy's
// initial backoff so the failing dependency is not hammered.
func (m *RetryManager) RequeueDelay() time.Duration {
	return m.policy.Initial
}
