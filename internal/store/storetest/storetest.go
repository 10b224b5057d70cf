// Package storetest provides a sqlite-backed store and a behavioural suite shared by
// every store.Store implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quadrant/backend/internal/database"
	"quadrant/backend/internal/models"
	"quadrant/backend/internal/store"
	"quadrant/backend/internal/store/gormstore"
)

// NewSQLite returns a migrated store over a private in-memory sqlite database.
func NewSQLite(t testing.TB) *gormstore.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Connect("sqlite", dsn)
	require.NoError(t, err)

	s := gormstore.New(db)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// CreateUser inserts an account with the given nickname and type.
func CreateUser(t testing.TB, s store.Store, nickname string, kind models.AccountType) *models.User {
	t.Helper()

	u := &models.User{
		ID:           uuid.New(),
		Nickname:     nickname,
		Email:        nickname + "@example.com",
		PasswordHash: "x",
		AccountType:  kind,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

var errRollback = errors.New("rollback")

// Run exercises the store contract against s. s must be empty.
func Run(t *testing.T, s store.Store) {
	ctx := context.Background()

	alice := CreateUser(t, s, "alice", models.AccountTypeUser)
	bob := CreateUser(t, s, "bob", models.AccountTypeUser)
	carol := CreateUser(t, s, "carol", models.AccountTypeBot)

	t.Run("users", func(t *testing.T) {
		got, err := s.GetUser(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Nickname)

		_, err = s.GetUser(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrNotFound)

		got, err = s.FindUserByLogin(ctx, "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, bob.ID, got.ID)

		got, err = s.FindUserByLogin(ctx, "carol")
		require.NoError(t, err)
		assert.True(t, got.IsBot())

		dup := &models.User{ID: uuid.New(), Nickname: "alice", Email: "other@example.com", PasswordHash: "x", AccountType: models.AccountTypeUser}
		assert.ErrorIs(t, s.CreateUser(ctx, dup), store.ErrAlreadyExists)

		users, err := s.GetUsers(ctx, []uuid.UUID{alice.ID, carol.ID})
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})

	t.Run("search", func(t *testing.T) {
		users, total, err := s.SearchUsers(ctx, "", store.Page{Number: 1, Limit: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, users, 2)
		assert.Equal(t, "alice", users[0].Nickname)

		users, total, err = s.SearchUsers(ctx, "", store.Page{Number: 2, Limit: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, users, 1)
		assert.Equal(t, "carol", users[0].Nickname)

		users, total, err = s.SearchUsers(ctx, "OB", store.Page{Number: 1, Limit: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, users, 1)
		assert.Equal(t, bob.ID, users[0].ID)
	})

	t.Run("edges", func(t *testing.T) {
		edge := &models.RelationEdge{InitiatorID: alice.ID, WithID: bob.ID, Status: models.StatusFriendRequestSender}
		require.NoError(t, s.CreateEdge(ctx, edge))

		dup := &models.RelationEdge{InitiatorID: alice.ID, WithID: bob.ID, Status: models.StatusFriends}
		assert.ErrorIs(t, s.CreateEdge(ctx, dup), store.ErrAlreadyExists)

		got, err := s.GetEdge(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFriendRequestSender, got.Status)

		_, err = s.GetEdge(ctx, bob.ID, alice.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.PutEdge(ctx, &models.RelationEdge{InitiatorID: alice.ID, WithID: bob.ID, Status: models.StatusBlocked}))
		got, err = s.GetEdge(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusBlocked, got.Status)

		require.NoError(t, s.PutEdge(ctx, &models.RelationEdge{InitiatorID: alice.ID, WithID: carol.ID, Status: models.StatusBlocked}))

		edges, total, err := s.ListEdges(ctx, store.EdgeFilter{InitiatorID: alice.ID}, store.Page{Number: 1, Limit: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, edges, 2)

		edges, total, err = s.ListEdges(ctx, store.EdgeFilter{InitiatorID: alice.ID, Status: models.StatusFriends}, store.Page{Number: 1, Limit: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 0, total)
		assert.Empty(t, edges)

		counts, err := s.CountEdges(ctx, alice.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, counts[models.StatusBlocked])
		assert.EqualValues(t, 0, counts[models.StatusFriends])

		require.NoError(t, s.DeleteEdge(ctx, alice.ID, bob.ID))
		require.NoError(t, s.DeleteEdge(ctx, alice.ID, bob.ID))
		_, err = s.GetEdge(ctx, alice.ID, bob.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.DeleteEdge(ctx, alice.ID, carol.ID))
	})

	t.Run("conditional writes", func(t *testing.T) {
		require.NoError(t, s.CreateEdge(ctx, &models.RelationEdge{InitiatorID: bob.ID, WithID: carol.ID, Status: models.StatusFriendRequestReceiver}))

		err := s.SwapEdgeStatus(ctx, bob.ID, carol.ID, models.StatusFriendRequestSender, models.StatusFriends)
		assert.ErrorIs(t, err, store.ErrNotFound)
		err = s.SwapEdgeStatus(ctx, carol.ID, bob.ID, models.StatusFriendRequestSender, models.StatusFriends)
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.SwapEdgeStatus(ctx, bob.ID, carol.ID, models.StatusFriendRequestReceiver, models.StatusFriends))
		got, err := s.GetEdge(ctx, bob.ID, carol.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFriends, got.Status)

		require.NoError(t, s.PutEdge(ctx, &models.RelationEdge{InitiatorID: carol.ID, WithID: bob.ID, Status: models.StatusBlocked}))
		require.NoError(t, s.DeleteEdgeUnless(ctx, carol.ID, bob.ID, models.StatusBlocked))
		got, err = s.GetEdge(ctx, carol.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusBlocked, got.Status)

		require.NoError(t, s.DeleteEdgeUnless(ctx, bob.ID, carol.ID, models.StatusBlocked))
		_, err = s.GetEdge(ctx, bob.ID, carol.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.DeleteEdge(ctx, carol.ID, bob.ID))
	})

	t.Run("transaction rollback", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Store) error {
			if err := tx.CreateEdge(ctx, &models.RelationEdge{InitiatorID: bob.ID, WithID: alice.ID, Status: models.StatusFriends}); err != nil {
				return err
			}
			return errRollback
		})
		assert.ErrorIs(t, err, errRollback)

		_, err = s.GetEdge(ctx, bob.ID, alice.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("transaction commit", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Store) error {
			if err := tx.CreateEdge(ctx, &models.RelationEdge{InitiatorID: bob.ID, WithID: alice.ID, Status: models.StatusFriends}); err != nil {
				return err
			}
			return tx.CreateEdge(ctx, &models.RelationEdge{InitiatorID: alice.ID, WithID: bob.ID, Status: models.StatusFriends})
		})
		require.NoError(t, err)

		for _, pair := range [][2]uuid.UUID{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
			got, err := s.GetEdge(ctx, pair[0], pair[1])
			require.NoError(t, err)
			assert.Equal(t, models.StatusFriends, got.Status)
		}
	})
}
