package models

import (
	"time"

	"github.com/google/uuid"
)

// RelationStatus defines the state of one side of a relationship between two users.
type RelationStatus string

const (
	// StatusNone is reported when no edge exists. It is never persisted.
	StatusNone RelationStatus = "none"

	// StatusFriendRequestSender marks the requester's side of a pending friend request.
	StatusFriendRequestSender RelationStatus = "friend_request_sender"

	// StatusFriendRequestReceiver marks the recipient's side of a pending friend request.
	StatusFriendRequestReceiver RelationStatus = "friend_request_receiver"

	StatusFriends RelationStatus = "friends"

	// StatusBlocked means the initiator has blocked the other user.
	StatusBlocked RelationStatus = "blocked"
)

// Valid reports whether s is one of the known statuses.
func (s RelationStatus) Valid() bool {
	switch s {
	case StatusNone, StatusFriendRequestSender, StatusFriendRequestReceiver, StatusFriends, StatusBlocked:
		return true
	}
	return false
}

func (s RelationStatus) String() string {
	return string(s)
}

// RelationEdge is one directed relationship record, owned by InitiatorID.
// The primary key is a composite of (InitiatorID, WithID) so each direction exists at most once.
type RelationEdge struct {
	InitiatorID uuid.UUID      `gorm:"type:char(36);primaryKey"`
	WithID      uuid.UUID      `gorm:"type:char(36);primaryKey;index"`
	Status      RelationStatus `gorm:"type:varchar(32);not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
