package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"quadrant/backend/internal/auth"
	"quadrant/backend/internal/models"
	"quadrant/backend/internal/relation"
	"quadrant/backend/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RelationResponse is one entry of the caller's relation list.
type RelationResponse struct {
	User      UserSummary           `json:"user"`
	Status    models.RelationStatus `json:"status" example:"friends"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// PaginatedRelationResponse defines the structure for a paginated list of relations.
type PaginatedRelationResponse = PaginatedResponse[RelationResponse]

// RelationshipResponse reports both sides of the relationship with another user.
type RelationshipResponse struct {
	UserID uuid.UUID             `json:"user_id"`
	Mine   models.RelationStatus `json:"mine" example:"friend_request_sender"`
	Theirs models.RelationStatus `json:"theirs" example:"friend_request_receiver"`
}

// ActionResponse is returned by every relationship transition.
type ActionResponse struct {
	Message      string               `json:"message" example:"Request sent successfully"`
	Relationship RelationshipResponse `json:"relationship"`
}

// GetRelations godoc
// @Summary      Get user relations
// @Description  Lists the caller's own relation edges, newest first, optionally filtered by status.
// @Tags         relations
// @Produce      json
// @Security     BearerAuth
// @Param        status query     string  false  "Filter by status (friend_request_sender, friend_request_receiver, friends, blocked)"
// @Param        page   query     int     false  "Page number" default(1)
// @Param        limit  query     int     false  "Items per page" default(10)
// @Success      200    {object}  PaginatedRelationResponse
// @Failure      400    {object}  ErrorResponse
// @Failure      401    {object}  ErrorResponse
// @Router       /users/me/relations [get]
func (h *Handler) GetRelations(c *gin.Context) {
	viewer := auth.Account(c)
	page := pageFromQuery(c)
	ctx := c.Request.Context()

	edges, totalItems, err := h.relations.ListRelations(ctx, viewer.ID, models.RelationStatus(c.Query("status")), page)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ids := make([]uuid.UUID, len(edges))
	for i, e := range edges {
		ids[i] = e.WithID
	}
	users, err := h.store.GetUsers(ctx, ids)
	if err != nil {
		h.respondError(c, err)
		return
	}
	byID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	responses := make([]RelationResponse, 0, len(edges))
	for _, e := range edges {
		u, ok := byID[e.WithID]
		if !ok {
			continue
		}
		responses = append(responses, RelationResponse{
			User:      summarize(u),
			Status:    e.Status,
			UpdatedAt: e.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, NewPaginatedResponse(responses, totalItems, page.Number, page.Limit))
}

// GetRelationship godoc
// @Summary      Get relationship with a user
// @Description  Reports the caller's status toward the user and the user's status toward the caller.
// @Tags         relations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Other User ID"
// @Success      200  {object}  RelationshipResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{id}/relationship [get]
func (h *Handler) GetRelationship(c *gin.Context) {
	viewer := auth.Account(c)
	otherID, ok := paramUserID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetUser(ctx, otherID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = relation.ErrUserNotFound
		}
		h.respondError(c, err)
		return
	}

	rel, err := h.relations.Relationship(ctx, viewer.ID, otherID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, RelationshipResponse{UserID: otherID, Mine: rel.Mine, Theirs: rel.Theirs})
}

// SendRequest godoc
// @Summary      Send friend request
// @Description  Sends a friend request to another user. Bots can neither send nor receive requests.
// @Tags         relations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Target User ID"
// @Success      201  {object}  ActionResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Target user not found"
// @Failure      409  {object}  ErrorResponse "Relation already exists"
// @Failure      500  {object}  ErrorResponse
// @Router       /users/{id}/request [post]
func (h *Handler) SendRequest(c *gin.Context) {
	h.relationAction(c, http.StatusCreated, "Request sent successfully", func(ctx context.Context, me, other uuid.UUID) error {
		_, err := h.relations.SendFriendRequest(ctx, me, other)
		return err
	})
}

// AcceptRequest godoc
// @Summary      Accept friend request
// @Description  Accepts a pending friend request from another user.
// @Tags         relations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Requesting User ID"
// @Success      200  {object}  ActionResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Request not found"
// @Failure      409  {object}  ErrorResponse "Not a received request"
// @Router       /users/{id}/accept [post]
func (h *Handler) AcceptRequest(c *gin.Context) {
	h.relationAction(c, http.StatusOK, "Request accepted", func(ctx context.Context, me, other uuid.UUID) error {
		_, err := h.relations.AcceptFriendRequest(ctx, me, other)
		return err
	})
}

// DenyRequest godoc
// @Summary      Deny friend request
// @Description  Denies a pending friend request from another user.
// @Tags         relations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Requesting User ID"
// @Success      200  {object}  ActionResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Request not found"
// @Failure      409  {object}  ErrorResponse "Not a received request"
// @Router       /users/{id}/deny [post]
func (h *Handler) DenyRequest(c *gin.Context) {
	h.relationAction(c, http.StatusOK, "Request denied", h.relations.DenyFriendRequest)
}

// CancelRequest godoc
// @Summary      Cancel friend request
// @Description  Withdraws a friend request the caller sent.
// @Tags         relations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Target User ID"
// @Success      200  {object}  ActionResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Request not found"
// @Failure      409  {object}  ErrorResponse "Not a sent request"
// @Router       /users/{id}/cancel [post]
func (h *Handler) CancelRequest(c *gin.Context) {
	h.relationAction(c, http.StatusOK, "Request cancelled", h.relations.CancelFriendRequest)
}

// RemoveFriend godoc
// @Summary      Remove friend
// @Description  Ends a friendship on both sides.
// @Tags         relations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Friend User ID"
// @Success      200  {object}  ActionResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Relation not found"
// @Failure      409  {object}  ErrorResponse "Not friends"
// @Router       /users/{id}/unfriend [post]
func (h *Handler) RemoveFriend(c *gin.Context) {
	h.relationAction(c, http.StatusOK, "Friend removed", h.relations.RemoveFriend)
}

// BlockUser godoc
// @Summary      Block user
// @Description  Blocks another user, dropping any friendship or pending request between the two.
// @Tags         relations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Target User ID"
// @Success      200  {object}  ActionResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Target user not found"
// @Failure      409  {object}  ErrorResponse "Already blocked"
// @Router       /users/{id}/block [post]
func (h *Handler) BlockUser(c *gin.Context) {
	h.relationAction(c, http.StatusOK, "User blocked", func(ctx context.Context, me, other uuid.UUID) error {
		_, err := h.relations.BlockUser(ctx, me, other)
		return err
	})
}

// UnblockUser godoc
// @Summary      Unblock user
// @Description  Lifts the caller's block on another user.
// @Tags         relations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Target User ID"
// @Success      200  {object}  ActionResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Block not found"
// @Failure      409  {object}  ErrorResponse "Not blocked"
// @Router       /users/{id}/unblock [post]
func (h *Handler) UnblockUser(c *gin.Context) {
	h.relationAction(c, http.StatusOK, "User unblocked", h.relations.UnblockUser)
}

// relationAction runs op between the caller and the :id user, then answers with
// the relationship as it stands after the change.
func (h *Handler) relationAction(c *gin.Context, code int, message string, op func(ctx context.Context, me, other uuid.UUID) error) {
	viewer := auth.Account(c)
	otherID, ok := paramUserID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := op(ctx, viewer.ID, otherID); err != nil {
		h.respondError(c, err)
		return
	}

	rel, err := h.relations.Relationship(ctx, viewer.ID, otherID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(code, ActionResponse{
		Message:      message,
		Relationship: RelationshipResponse{UserID: otherID, Mine: rel.Mine, Theirs: rel.Theirs},
	})
}
