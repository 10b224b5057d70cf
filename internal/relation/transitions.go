package relation

import (
	"fmt"

	"quadrant/backend/internal/models"
)

// Action is a relationship operation performed by one user on another.
type Action string

const (
	ActionSend    Action = "send"
	ActionAccept  Action = "accept"
	ActionDeny    Action = "deny"
	ActionCancel  Action = "cancel"
	ActionRemove  Action = "remove"
	ActionBlock   Action = "block"
	ActionUnblock Action = "unblock"
)

// requiredStatus is the status the actor's own edge must hold before the action applies.
var requiredStatus = map[Action]models.RelationStatus{
	ActionAccept:  models.StatusFriendRequestReceiver,
	ActionDeny:    models.StatusFriendRequestReceiver,
	ActionCancel:  models.StatusFriendRequestSender,
	ActionRemove:  models.StatusFriends,
	ActionUnblock: models.StatusBlocked,
}

// notices names the event the other party receives once the action commits.
// Blocking and unblocking are silent.
var notices = map[Action]string{
	ActionSend:   "relation.request_received",
	ActionAccept: "relation.request_accepted",
	ActionDeny:   "relation.request_denied",
	ActionCancel: "relation.request_cancelled",
	ActionRemove: "relation.friend_removed",
}

// Check reports whether action may be applied when the actor's edge has status mine
// and the other user's edge has status theirs. StatusNone stands for a missing edge.
func Check(action Action, mine, theirs models.RelationStatus) error {
	switch action {
	case ActionSend:
		if mine != models.StatusNone || theirs != models.StatusNone {
			return ErrAlreadyHasRelationship
		}
		return nil
	case ActionBlock:
		if mine == models.StatusBlocked {
			return ErrAlreadyBlocked
		}
		return nil
	}

	want, ok := requiredStatus[action]
	if !ok {
		return fmt.Errorf("unknown relation action %q", action)
	}
	if mine == models.StatusNone {
		return ErrRelationNotFound
	}
	if mine != want {
		return fmt.Errorf("%w: %s needs %s, edge is %s", ErrInvalidRelationshipStatus, action, want, mine)
	}
	return nil
}
