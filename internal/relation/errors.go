package relation

// Error is a relationship rule violation. Code is a stable reason code for API clients.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrAlreadyHasRelationship = &Error{Code: "already_has_relationship", Message: "users already have a relationship"}
	// ErrInvalidRelationshipStatus is returned wrapped with the observed and expected status.
	ErrInvalidRelationshipStatus = &Error{Code: "invalid_relationship_status", Message: "relationship is in the wrong status"}
	ErrInvalidRelationToBot      = &Error{Code: "invalid_relation_to_bot", Message: "bot accounts cannot have friends"}
	ErrAlreadyBlocked            = &Error{Code: "already_blocked", Message: "user is already blocked"}
	ErrSelfRelation              = &Error{Code: "self_relation", Message: "cannot target yourself"}
	ErrRelationNotFound          = &Error{Code: "relation_not_found", Message: "relationship not found"}
	ErrUserNotFound              = &Error{Code: "user_not_found", Message: "user not found"}
	ErrUnknownStatus             = &Error{Code: "unknown_status", Message: "unknown relationship status"}
)
