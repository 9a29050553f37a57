package domain

// RequestStatus represents the lifecycle state of an authorization request.
type RequestStatus string

// The nine request statuses. A request starts in DRAFT and is mutated only
// through transitions listed in allowedTransitions.
const (
	StatusDraft       RequestStatus = "DRAFT"
	StatusSubmitted   RequestStatus = "SUBMITTED"
	StatusInReview    RequestStatus = "IN_REVIEW"
	StatusPendingInfo RequestStatus = "PENDING_INFO"
	StatusApproved    RequestStatus = "APPROVED"
	StatusDenied      RequestStatus = "DENIED"
	StatusCancelled   RequestStatus = "CANCELLED"
	StatusExpired     RequestStatus = "EXPIRED"
	StatusAppealed    RequestStatus = "APPEALED"
)

// AllStatuses lists every known status, in declaration order. Exposed so
// callers (and tests) can enumerate the full state space.
var AllStatuses = []RequestStatus{
	StatusDraft,
	StatusSubmitted,
	StatusInReview,
	StatusPendingInfo,
	StatusApproved,
	StatusDenied,
	StatusCancelled,
	StatusExpired,
	StatusAppealed,
}

// allowedTransitions is the complete transition table. Provider-initiated
// withdrawal (→CANCELLED) is permitted from any state that has not yet been
// decided; DENIED admits only the APPEALED escape, and an appealed request has
// already been decided once, so neither may be cancelled.
var allowedTransitions = map[RequestStatus][]RequestStatus{
	StatusDraft:       {StatusSubmitted, StatusCancelled},
	StatusSubmitted:   {StatusInReview, StatusCancelled},
	StatusInReview:    {StatusPendingInfo, StatusApproved, StatusDenied, StatusCancelled},
	StatusPendingInfo: {StatusInReview, StatusExpired, StatusCancelled},
	StatusDenied:      {StatusAppealed},
	StatusAppealed:    {StatusApproved, StatusDenied},
	// APPROVED, CANCELLED and EXPIRED are terminal: no outgoing transitions.
}

// IsValid reports whether s names one of the nine known statuses.
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusInReview, StatusPendingInfo,
		StatusApproved, StatusDenied, StatusCancelled, StatusExpired, StatusAppealed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s admits no outgoing transitions at all.
// Note DENIED is not terminal: it has exactly one escape, to APPEALED.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusCancelled || s == StatusExpired
}

// CanTransitionTo reports whether the transition s→to is in the allowed table.
func (s RequestStatus) CanTransitionTo(to RequestStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from s in a single
// transition. The returned slice is a copy; callers may modify it freely.
func (s RequestStatus) AllowedTransitions() []RequestStatus {
	allowed := allowedTransitions[s]
	out := make([]RequestStatus, len(allowed))
	copy(out, allowed)
	return out
}
