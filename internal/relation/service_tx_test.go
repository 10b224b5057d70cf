package relation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quadrant/backend/internal/models"
	"quadrant/backend/internal/store"
)

var errWriteFailed = errors.New("write failed")

// hookedStore calls before ahead of every edge write made inside a transaction.
// A non-nil error from before aborts the write and the transaction.
type hookedStore struct {
	store.Store
	before func(ctx context.Context, tx store.Store, op string) error
}

func (h *hookedStore) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return h.Store.WithTx(ctx, func(tx store.Store) error {
		return fn(&hookedTx{Store: tx, before: h.before})
	})
}

type hookedTx struct {
	store.Store
	before func(ctx context.Context, tx store.Store, op string) error
}

func (h *hookedTx) CreateEdge(ctx context.Context, edge *models.RelationEdge) error {
	if err := h.before(ctx, h.Store, "create"); err != nil {
		return err
	}
	return h.Store.CreateEdge(ctx, edge)
}

func (h *hookedTx) PutEdge(ctx context.Context, edge *models.RelationEdge) error {
	if err := h.before(ctx, h.Store, "put"); err != nil {
		return err
	}
	return h.Store.PutEdge(ctx, edge)
}

func (h *hookedTx) SwapEdgeStatus(ctx context.Context, initiatorID, withID uuid.UUID, from, to models.RelationStatus) error {
	if err := h.before(ctx, h.Store, "swap"); err != nil {
		return err
	}
	return h.Store.SwapEdgeStatus(ctx, initiatorID, withID, from, to)
}

func (h *hookedTx) DeleteEdge(ctx context.Context, initiatorID, withID uuid.UUID) error {
	if err := h.before(ctx, h.Store, "delete"); err != nil {
		return err
	}
	return h.Store.DeleteEdge(ctx, initiatorID, withID)
}

func (h *hookedTx) DeleteEdgeUnless(ctx context.Context, initiatorID, withID uuid.UUID, keep models.RelationStatus) error {
	if err := h.before(ctx, h.Store, "delete_unless"); err != nil {
		return err
	}
	return h.Store.DeleteEdgeUnless(ctx, initiatorID, withID, keep)
}

// failOnWrite fails the n-th edge write.
func failOnWrite(n int) func(context.Context, store.Store, string) error {
	count := 0
	return func(context.Context, store.Store, string) error {
		count++
		if count == n {
			return errWriteFailed
		}
		return nil
	}
}

func TestOperationsRollBackBothEdges(t *testing.T) {
	ctx := context.Background()

	pending := func(t *testing.T, f *fixture) {
		_, err := f.svc.SendFriendRequest(ctx, f.alice, f.bob)
		require.NoError(t, err)
	}
	friends := func(t *testing.T, f *fixture) {
		pending(t, f)
		_, err := f.svc.AcceptFriendRequest(ctx, f.bob, f.alice)
		require.NoError(t, err)
	}

	tests := []struct {
		name       string
		setup      func(t *testing.T, f *fixture)
		op         func(s *Service, f *fixture) error
		wantMine   models.RelationStatus
		wantTheirs models.RelationStatus
	}{
		{
			name: "send",
			op: func(s *Service, f *fixture) error {
				_, err := s.SendFriendRequest(ctx, f.alice, f.bob)
				return err
			},
			wantMine:   models.StatusNone,
			wantTheirs: models.StatusNone,
		},
		{
			name:  "accept",
			setup: pending,
			op: func(s *Service, f *fixture) error {
				_, err := s.AcceptFriendRequest(ctx, f.bob, f.alice)
				return err
			},
			wantMine:   models.StatusFriendRequestSender,
			wantTheirs: models.StatusFriendRequestReceiver,
		},
		{
			name:       "deny",
			setup:      pending,
			op:         func(s *Service, f *fixture) error { return s.DenyFriendRequest(ctx, f.bob, f.alice) },
			wantMine:   models.StatusFriendRequestSender,
			wantTheirs: models.StatusFriendRequestReceiver,
		},
		{
			name:       "cancel",
			setup:      pending,
			op:         func(s *Service, f *fixture) error { return s.CancelFriendRequest(ctx, f.alice, f.bob) },
			wantMine:   models.StatusFriendRequestSender,
			wantTheirs: models.StatusFriendRequestReceiver,
		},
		{
			name:       "remove",
			setup:      friends,
			op:         func(s *Service, f *fixture) error { return s.RemoveFriend(ctx, f.alice, f.bob) },
			wantMine:   models.StatusFriends,
			wantTheirs: models.StatusFriends,
		},
		{
			name:  "block",
			setup: friends,
			op: func(s *Service, f *fixture) error {
				_, err := s.BlockUser(ctx, f.alice, f.bob)
				return err
			},
			wantMine:   models.StatusFriends,
			wantTheirs: models.StatusFriends,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}

			rec := &recorder{}
			faulty := NewService(&hookedStore{Store: f.store, before: failOnWrite(2)}, rec, nil)

			err := tt.op(faulty, f)
			assert.ErrorIs(t, err, errWriteFailed)

			mine, theirs := f.edges(t, f.alice, f.bob)
			assert.Equal(t, tt.wantMine, mine)
			assert.Equal(t, tt.wantTheirs, theirs)
			assert.Empty(t, rec.events)
		})
	}
}

func TestBlockUser_RemovesEdgeWrittenAfterRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Bob's request lands after the block has loaded the pair but before it writes.
	landed := false
	before := func(ctx context.Context, tx store.Store, op string) error {
		if op != "put" || landed {
			return nil
		}
		landed = true
		if err := tx.CreateEdge(ctx, &models.RelationEdge{InitiatorID: f.bob, WithID: f.alice, Status: models.StatusFriendRequestSender}); err != nil {
			return err
		}
		return tx.CreateEdge(ctx, &models.RelationEdge{InitiatorID: f.alice, WithID: f.bob, Status: models.StatusFriendRequestReceiver})
	}
	svc := NewService(&hookedStore{Store: f.store, before: before}, f.events, nil)

	_, err := svc.BlockUser(ctx, f.alice, f.bob)
	require.NoError(t, err)
	require.True(t, landed)

	mine, theirs := f.edges(t, f.alice, f.bob)
	assert.Equal(t, models.StatusBlocked, mine)
	assert.Equal(t, models.StatusNone, theirs)
}

func TestAcceptFriendRequest_EdgeChangedAfterRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.SendFriendRequest(ctx, f.alice, f.bob)
	require.NoError(t, err)

	// Alice blocks Bob between Bob's read and Bob's write.
	blocked := false
	before := func(ctx context.Context, tx store.Store, op string) error {
		if op != "swap" || blocked {
			return nil
		}
		blocked = true
		if err := tx.PutEdge(ctx, &models.RelationEdge{InitiatorID: f.alice, WithID: f.bob, Status: models.StatusBlocked}); err != nil {
			return err
		}
		return tx.DeleteEdge(ctx, f.bob, f.alice)
	}
	rec := &recorder{}
	svc := NewService(&hookedStore{Store: f.store, before: before}, rec, nil)

	_, err = svc.AcceptFriendRequest(ctx, f.bob, f.alice)
	assert.ErrorIs(t, err, ErrInvalidRelationshipStatus)
	assert.Empty(t, rec.events)

	mine, theirs := f.edges(t, f.alice, f.bob)
	assert.NotEqual(t, models.StatusFriends, mine)
	assert.NotEqual(t, models.StatusFriends, theirs)
}
