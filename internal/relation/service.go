// Package relation implements the user relationship state machine: friend requests,
// friendships and blocks, stored as two directed edges per pair of users.
//
// Every operation reads and writes both directions of a pair inside one store
// transaction, so either both edges change or neither does.
package relation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quadrant/backend/internal/hub"
	"quadrant/backend/internal/models"
	"quadrant/backend/internal/store"
)

// Notifier delivers events to a user's live connections.
type Notifier interface {
	Publish(userID uuid.UUID, event hub.Event)
}

// EventPayload is the body of every relation.* event.
type EventPayload struct {
	UserID uuid.UUID             `json:"user_id"`
	Status models.RelationStatus `json:"status"`
}

// Relationship is the pair of statuses between a viewer and another user.
type Relationship struct {
	Mine   models.RelationStatus `json:"mine"`
	Theirs models.RelationStatus `json:"theirs"`
}

type Service struct {
	store    store.Store
	notifier Notifier
	log      *zap.Logger
}

// NewService wires the state machine to a store. notifier and log may be nil.
func NewService(s store.Store, notifier Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, notifier: notifier, log: log}
}

// pair holds both directed edges between the actor and the other user; nil means absent.
type pair struct {
	mine   *models.RelationEdge
	theirs *models.RelationEdge
}

func statusOf(e *models.RelationEdge) models.RelationStatus {
	if e == nil {
		return models.StatusNone
	}
	return e.Status
}

func loadEdge(ctx context.Context, tx store.Store, from, to uuid.UUID) (*models.RelationEdge, error) {
	edge, err := tx.GetEdge(ctx, from, to)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return edge, err
}

func loadPair(ctx context.Context, tx store.Store, actor, other uuid.UUID) (pair, error) {
	mine, err := loadEdge(ctx, tx, actor, other)
	if err != nil {
		return pair{}, err
	}
	theirs, err := loadEdge(ctx, tx, other, actor)
	if err != nil {
		return pair{}, err
	}
	return pair{mine: mine, theirs: theirs}, nil
}

func requireUser(ctx context.Context, tx store.Store, id uuid.UUID) (*models.User, error) {
	u, err := tx.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// dropOpposite deletes the other user's edge unless they have blocked the actor. The
// status test happens in the delete, so an edge written after the pair was loaded is
// removed too.
func dropOpposite(ctx context.Context, tx store.Store, actor, other uuid.UUID) error {
	return tx.DeleteEdgeUnless(ctx, other, actor, models.StatusBlocked)
}

// swap moves one edge between statuses, reporting an edge that changed since it was
// checked as a status conflict.
func swap(ctx context.Context, tx store.Store, from, to uuid.UUID, was, now models.RelationStatus) error {
	err := tx.SwapEdgeStatus(ctx, from, to, was, now)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: edge is no longer %s", ErrInvalidRelationshipStatus, was)
	}
	return err
}

// SendFriendRequest creates the sender edge initiator→target and the receiver edge
// target→initiator. Any existing edge between the two, in either direction, is a conflict.
func (s *Service) SendFriendRequest(ctx context.Context, initiator, target uuid.UUID) (*models.RelationEdge, error) {
	if initiator == target {
		return nil, ErrSelfRelation
	}

	sender := &models.RelationEdge{InitiatorID: initiator, WithID: target, Status: models.StatusFriendRequestSender}
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		for _, id := range []uuid.UUID{initiator, target} {
			u, err := requireUser(ctx, tx, id)
			if err != nil {
				return err
			}
			if u.IsBot() {
				return ErrInvalidRelationToBot
			}
		}

		p, err := loadPair(ctx, tx, initiator, target)
		if err != nil {
			return err
		}
		if err := Check(ActionSend, statusOf(p.mine), statusOf(p.theirs)); err != nil {
			return err
		}

		receiver := &models.RelationEdge{InitiatorID: target, WithID: initiator, Status: models.StatusFriendRequestReceiver}
		for _, e := range []*models.RelationEdge{sender, receiver} {
			if err := tx.CreateEdge(ctx, e); err != nil {
				if errors.Is(err, store.ErrAlreadyExists) {
					return ErrAlreadyHasRelationship
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.committed(ActionSend, initiator, target, models.StatusFriendRequestReceiver)
	return sender, nil
}

// AcceptFriendRequest turns a pending request received by actor from requester into a
// friendship on both sides.
func (s *Service) AcceptFriendRequest(ctx context.Context, actor, requester uuid.UUID) (*models.RelationEdge, error) {
	mine := &models.RelationEdge{InitiatorID: actor, WithID: requester, Status: models.StatusFriends}
	err := s.transition(ctx, ActionAccept, actor, requester, func(tx store.Store) error {
		if err := swap(ctx, tx, actor, requester, models.StatusFriendRequestReceiver, models.StatusFriends); err != nil {
			return err
		}
		return swap(ctx, tx, requester, actor, models.StatusFriendRequestSender, models.StatusFriends)
	})
	if err != nil {
		return nil, err
	}

	s.committed(ActionAccept, actor, requester, models.StatusFriends)
	return mine, nil
}

// DenyFriendRequest rejects a pending request received by actor from requester.
func (s *Service) DenyFriendRequest(ctx context.Context, actor, requester uuid.UUID) error {
	return s.dissolve(ctx, ActionDeny, actor, requester)
}

// CancelFriendRequest withdraws a pending request actor sent to target.
func (s *Service) CancelFriendRequest(ctx context.Context, actor, target uuid.UUID) error {
	return s.dissolve(ctx, ActionCancel, actor, target)
}

// RemoveFriend ends the friendship between actor and friend.
func (s *Service) RemoveFriend(ctx context.Context, actor, friend uuid.UUID) error {
	return s.dissolve(ctx, ActionRemove, actor, friend)
}

// dissolve deletes both edges of the pair, never touching a blocked edge of the other user.
func (s *Service) dissolve(ctx context.Context, action Action, actor, other uuid.UUID) error {
	err := s.transition(ctx, action, actor, other, func(tx store.Store) error {
		if err := tx.DeleteEdge(ctx, actor, other); err != nil {
			return err
		}
		return dropOpposite(ctx, tx, actor, other)
	})
	if err != nil {
		return err
	}

	s.committed(action, actor, other, models.StatusNone)
	return nil
}

// BlockUser makes initiator's edge to target blocked, deleting target's edge back
// unless target has blocked initiator too.
func (s *Service) BlockUser(ctx context.Context, initiator, target uuid.UUID) (*models.RelationEdge, error) {
	if initiator == target {
		return nil, ErrSelfRelation
	}

	blocked := &models.RelationEdge{InitiatorID: initiator, WithID: target, Status: models.StatusBlocked}
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		if _, err := requireUser(ctx, tx, target); err != nil {
			return err
		}

		p, err := loadPair(ctx, tx, initiator, target)
		if err != nil {
			return err
		}
		if err := Check(ActionBlock, statusOf(p.mine), statusOf(p.theirs)); err != nil {
			return err
		}

		// The block is written first: a concurrent send either collides with it on the
		// key or has committed its edge before dropOpposite runs.
		if err := tx.PutEdge(ctx, blocked); err != nil {
			return err
		}
		return dropOpposite(ctx, tx, initiator, target)
	})
	if err != nil {
		return nil, err
	}

	s.committed(ActionBlock, initiator, target, models.StatusNone)
	return blocked, nil
}

// UnblockUser removes initiator's block on target. Target's edge, if any, is untouched.
func (s *Service) UnblockUser(ctx context.Context, initiator, target uuid.UUID) error {
	err := s.transition(ctx, ActionUnblock, initiator, target, func(tx store.Store) error {
		return tx.DeleteEdge(ctx, initiator, target)
	})
	if err != nil {
		return err
	}

	s.committed(ActionUnblock, initiator, target, models.StatusNone)
	return nil
}

// transition loads the pair in a transaction, validates action against the actor's
// edge and runs apply.
func (s *Service) transition(ctx context.Context, action Action, actor, other uuid.UUID, apply func(tx store.Store) error) error {
	if actor == other {
		return ErrSelfRelation
	}

	return s.store.WithTx(ctx, func(tx store.Store) error {
		p, err := loadPair(ctx, tx, actor, other)
		if err != nil {
			return err
		}
		if err := Check(action, statusOf(p.mine), statusOf(p.theirs)); err != nil {
			return err
		}
		return apply(tx)
	})
}

// committed logs the applied transition and notifies the other user when the action has a notice.
func (s *Service) committed(action Action, actor, other uuid.UUID, theirs models.RelationStatus) {
	s.log.Info("relation transition applied",
		zap.String("action", string(action)),
		zap.Stringer("actor", actor),
		zap.Stringer("other", other),
	)

	kind, ok := notices[action]
	if !ok || s.notifier == nil {
		return
	}
	s.notifier.Publish(other, hub.Event{
		Type:    kind,
		Payload: EventPayload{UserID: actor, Status: theirs},
	})
}

// Relationship reports the statuses of both edges between viewer and other.
func (s *Service) Relationship(ctx context.Context, viewer, other uuid.UUID) (Relationship, error) {
	if viewer == other {
		return Relationship{}, ErrSelfRelation
	}

	p, err := loadPair(ctx, s.store, viewer, other)
	if err != nil {
		return Relationship{}, err
	}
	return Relationship{Mine: statusOf(p.mine), Theirs: statusOf(p.theirs)}, nil
}

// ListRelations returns one page of the edges owned by user, newest first.
// StatusNone lists every status.
func (s *Service) ListRelations(ctx context.Context, user uuid.UUID, status models.RelationStatus, page store.Page) ([]models.RelationEdge, int64, error) {
	if status == "" {
		status = models.StatusNone
	}
	if !status.Valid() {
		return nil, 0, ErrUnknownStatus
	}
	return s.store.ListEdges(ctx, store.EdgeFilter{InitiatorID: user, Status: status}, page)
}

// Counts returns how many edges user owns in each status.
func (s *Service) Counts(ctx context.Context, user uuid.UUID) (map[models.RelationStatus]int64, error) {
	return s.store.CountEdges(ctx, user)
}
