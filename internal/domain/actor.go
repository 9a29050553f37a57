package domain

import "github.com/google/uuid"

// Role identifies the capacity in which an actor performs a transition.
type Role string

// Known actor roles. RoleSystem is used by scheduler-driven transitions such
// as expiring stale requests; it is never assigned to an end user.
const (
	RoleProvider Role = "PROVIDER"
	RoleReviewer Role = "REVIEWER"
	RoleAdmin    Role = "ADMIN"
	RoleSystem   Role = "SYSTEM"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleProvider, RoleReviewer, RoleAdmin, RoleSystem:
		return true
	default:
		return false
	}
}

// Actor is the identity attempting a state transition.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// transitionKey identifies a single (from, to) pair in the permission table.
type transitionKey struct {
	from RequestStatus
	to   RequestStatus
}

// transitionRoles maps each allowed transition to the roles permitted to
// perform it. RoleAdmin and RoleSystem are implicitly permitted everywhere
// (see RoleMayTransition); the table lists the user-facing roles only.
var transitionRoles = map[transitionKey][]Role{
	{StatusDraft, StatusSubmitted}:       {RoleProvider},
	{StatusDraft, StatusCancelled}:       {RoleProvider},
	{StatusSubmitted, StatusInReview}:    {RoleReviewer},
	{StatusSubmitted, StatusCancelled}:   {RoleProvider},
	{StatusInReview, StatusPendingInfo}:  {RoleReviewer},
	{StatusInReview, StatusApproved}:     {RoleReviewer},
	{StatusInReview, StatusDenied}:       {RoleReviewer},
	{StatusInReview, StatusCancelled}:    {RoleProvider},
	{StatusPendingInfo, StatusInReview}:  {RoleProvider, RoleReviewer},
	{StatusPendingInfo, StatusExpired}:   {},
	{StatusPendingInfo, StatusCancelled}: {RoleProvider},
	{StatusDenied, StatusAppealed}:       {RoleProvider},
	{StatusAppealed, StatusApproved}:     {RoleReviewer},
	{StatusAppealed, StatusDenied}:       {RoleReviewer},
}

// RoleMayTransition reports whether role is permitted to perform from→to.
// It assumes the transition pair itself is valid; callers check
// CanTransitionTo first. Admin and system actors may perform any valid
// transition.
func RoleMayTransition(role Role, from, to RequestStatus) bool {
	if role == RoleAdmin || role == RoleSystem {
		return true
	}
	for _, allowed := range transitionRoles[transitionKey{from, to}] {
		if allowed == role {
			return true
		}
	}
	return false
}
