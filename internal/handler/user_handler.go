package handler

import (
	"errors"
	"net/http"

	"quadrant/backend/internal/auth"
	"quadrant/backend/internal/models"
	"quadrant/backend/internal/relation"
	"quadrant/backend/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// region --- DTOs ---

// PublicUserResponse defines the structure for a user's public profile.
type PublicUserResponse struct {
	ID               uuid.UUID              `json:"id" example:"6f1c2d3e-0000-4000-8000-000000000001"`
	Nickname         string                 `json:"nickname" example:"testuser"`
	AccountType      models.AccountType     `json:"account_type" example:"user"`
	FriendsCount     int64                  `json:"friends_count"`
	IncomingRequests int64                  `json:"incoming_requests"`
	OutgoingRequests int64                  `json:"outgoing_requests"`
	RelationToMe     *models.RelationStatus `json:"relation_to_me,omitempty"`
	MeToRelation     *models.RelationStatus `json:"me_to_relation,omitempty"`
	Online           bool                   `json:"online"`
}

// PrivateUserResponse defines the structure for the authenticated user's own profile.
type PrivateUserResponse struct {
	ID               uuid.UUID          `json:"id" example:"6f1c2d3e-0000-4000-8000-000000000001"`
	Nickname         string             `json:"nickname" example:"testuser"`
	Email            string             `json:"email" example:"test@example.com"`
	AccountType      models.AccountType `json:"account_type" example:"user"`
	FriendsCount     int64              `json:"friends_count"`
	IncomingRequests int64              `json:"incoming_requests"`
	OutgoingRequests int64              `json:"outgoing_requests"`
	BlockedCount     int64              `json:"blocked_count"`
}

// UserSummary is the short form of a user embedded in lists.
type UserSummary struct {
	ID          uuid.UUID          `json:"id"`
	Nickname    string             `json:"nickname"`
	AccountType models.AccountType `json:"account_type"`
}

// PaginatedUserResponse defines the structure for a paginated list of users.
type PaginatedUserResponse = PaginatedResponse[PublicUserResponse]

// endregion

// region --- User Handlers ---

// SearchUsers godoc
// @Summary      Search for users
// @Description  Searches for users by nickname with pagination. The caller is never part of the result.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        q     query     string  false  "Search query for nickname"
// @Param        page  query     int     false  "Page number" default(1)
// @Param        limit query     int     false  "Items per page" default(10)
// @Success      200   {object}  PaginatedUserResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /users [get]
func (h *Handler) SearchUsers(c *gin.Context) {
	viewer := auth.Account(c)
	page := pageFromQuery(c)

	users, totalItems, err := h.store.SearchUsers(c.Request.Context(), c.Query("q"), page)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Don't show the viewer in the search results
	responses := make([]PublicUserResponse, 0, len(users))
	for _, user := range users {
		if user.ID == viewer.ID {
			continue
		}
		res, err := h.buildPublicUserResponse(c, user, viewer.ID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		responses = append(responses, res)
	}

	c.JSON(http.StatusOK, NewPaginatedResponse(responses, totalItems, page.Number, page.Limit))
}

// GetUserByID godoc
// @Summary      Get user by ID
// @Description  Retrieves the public profile for a specific user by their ID, including relationship data.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  PublicUserResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /users/{id} [get]
func (h *Handler) GetUserByID(c *gin.Context) {
	viewer := auth.Account(c)
	targetID, ok := paramUserID(c)
	if !ok {
		return
	}

	// If target is the same as viewer, redirect to /me
	if targetID == viewer.ID {
		h.GetMe(c)
		return
	}

	h.writeProfile(c, targetID, viewer.ID)
}

// GetProfile godoc
// @Summary      Get public profile
// @Description  Retrieves a public profile. Relationship fields are filled in when a valid token is supplied.
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  PublicUserResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /profiles/{id} [get]
func (h *Handler) GetProfile(c *gin.Context) {
	targetID, ok := paramUserID(c)
	if !ok {
		return
	}

	viewerID, _ := auth.UserID(c)
	h.writeProfile(c, targetID, viewerID)
}

// GetMe godoc
// @Summary      Get current user's info
// @Description  Retrieves the private profile for the currently authenticated user.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  PrivateUserResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /users/me [get]
func (h *Handler) GetMe(c *gin.Context) {
	user := auth.Account(c)

	counts, err := h.relations.Counts(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, PrivateUserResponse{
		ID:               user.ID,
		Nickname:         user.Nickname,
		Email:            user.Email,
		AccountType:      user.AccountType,
		FriendsCount:     counts[models.StatusFriends],
		IncomingRequests: counts[models.StatusFriendRequestReceiver],
		OutgoingRequests: counts[models.StatusFriendRequestSender],
		BlockedCount:     counts[models.StatusBlocked],
	})
}

// endregion

// region --- Helpers ---

func (h *Handler) writeProfile(c *gin.Context, targetID, viewerID uuid.UUID) {
	target, err := h.store.GetUser(c.Request.Context(), targetID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "User not found", Code: relation.ErrUserNotFound.Code})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	res, err := h.buildPublicUserResponse(c, *target, viewerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// buildPublicUserResponse fills counts for target and, unless viewerID is nil or
// target itself, the statuses of both edges between them.
func (h *Handler) buildPublicUserResponse(c *gin.Context, target models.User, viewerID uuid.UUID) (PublicUserResponse, error) {
	ctx := c.Request.Context()

	counts, err := h.relations.Counts(ctx, target.ID)
	if err != nil {
		return PublicUserResponse{}, err
	}

	res := PublicUserResponse{
		ID:               target.ID,
		Nickname:         target.Nickname,
		AccountType:      target.AccountType,
		FriendsCount:     counts[models.StatusFriends],
		IncomingRequests: counts[models.StatusFriendRequestReceiver],
		OutgoingRequests: counts[models.StatusFriendRequestSender],
		Online:           h.hub.Online(target.ID),
	}

	if viewerID == uuid.Nil || viewerID == target.ID {
		return res, nil
	}

	rel, err := h.relations.Relationship(ctx, viewerID, target.ID)
	if err != nil {
		return PublicUserResponse{}, err
	}
	if rel.Theirs != models.StatusNone {
		res.RelationToMe = &rel.Theirs
	}
	if rel.Mine != models.StatusNone {
		res.MeToRelation = &rel.Mine
	}
	return res, nil
}

func summarize(u models.User) UserSummary {
	return UserSummary{ID: u.ID, Nickname: u.Nickname, AccountType: u.AccountType}
}

// endregion
