// Package store defines the persistence contract for accounts and relationship edges.
package store

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"

	"quadrant/backend/internal/models"
)

// ErrNotFound indicates a requested user or edge is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// Page selects a 1-based page of Limit items.
type Page struct {
	Number int
	Limit  int
}

// Offset returns the number of items to skip.
func (p Page) Offset() int {
	if p.Number < 1 || p.Limit < 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Limit
}

// EdgeFilter narrows ListEdges to the edges owned by InitiatorID.
// An empty Status (or StatusNone) matches every status.
type EdgeFilter struct {
	InitiatorID uuid.UUID
	Status      models.RelationStatus
}

// Store is implemented by every persistence backend.
//
// Edge methods address a single directed edge. Callers that need to change both
// directions of a pair atomically run inside WithTx and use the Store passed to fn.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	FindUserByLogin(ctx context.Context, login string) (*models.User, error)
	SearchUsers(ctx context.Context, query string, page Page) ([]models.User, int64, error)

	GetEdge(ctx context.Context, initiatorID, withID uuid.UUID) (*models.RelationEdge, error)
	// CreateEdge inserts a new edge and returns ErrAlreadyExists if that direction is taken.
	CreateEdge(ctx context.Context, edge *models.RelationEdge) error
	// PutEdge inserts the edge or overwrites the status of the existing one.
	PutEdge(ctx context.Context, edge *models.RelationEdge) error
	// SwapEdgeStatus moves the edge from status from to status to. It returns ErrNotFound
	// when the edge is missing or no longer holds from at the time of the write.
	SwapEdgeStatus(ctx context.Context, initiatorID, withID uuid.UUID, from, to models.RelationStatus) error
	// DeleteEdge removes the edge; deleting a missing edge is not an error.
	DeleteEdge(ctx context.Context, initiatorID, withID uuid.UUID) error
	// DeleteEdgeUnless removes the edge unless its stored status is keep. The status is
	// tested by the delete itself, not by an earlier read.
	DeleteEdgeUnless(ctx context.Context, initiatorID, withID uuid.UUID, keep models.RelationStatus) error
	ListEdges(ctx context.Context, filter EdgeFilter, page Page) ([]models.RelationEdge, int64, error)
	CountEdges(ctx context.Context, initiatorID uuid.UUID) (map[models.RelationStatus]int64, error)

	WithTx(ctx context.Context, fn func(tx Store) error) error
	Close(ctx context.Context) error
}
