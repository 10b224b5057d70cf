package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quadrant/backend/internal/config"
	"quadrant/backend/internal/hub"
	"quadrant/backend/internal/models"
	"quadrant/backend/internal/relation"
	"quadrant/backend/internal/store"
	"quadrant/backend/internal/store/storetest"
	"quadrant/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  store.Store
	hub    *hub.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	prev := config.AppConfig
	config.AppConfig = &config.Config{JWTSecret: "handler-secret", JWTTTL: time.Hour}
	t.Cleanup(func() { config.AppConfig = prev })

	s := storetest.NewSQLite(t)
	h := hub.NewHub()
	svc := relation.NewService(s, h, nil)
	return &testServer{
		t:      t,
		router: New(s, svc, h, nil).Router(),
		store:  s,
		hub:    h,
	}
}

func (ts *testServer) user(nickname string, kind models.AccountType) (*models.User, string) {
	ts.t.Helper()
	u := storetest.CreateUser(ts.t, ts.store, nickname, kind)
	token, err := jwt.GenerateToken(u.ID)
	require.NoError(ts.t, err)
	return u, token
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/auth/register", "", RegisterInput{
		Nickname: "erin", Email: "erin@example.com", Password: "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	token := decode[TokenResponse](t, w).Token
	require.NotEmpty(t, token)

	id, err := jwt.ParseToken(token)
	require.NoError(t, err)
	u, err := ts.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.AccountTypeUser, u.AccountType)

	tests := []struct {
		name     string
		path     string
		body     any
		wantCode int
	}{
		{"duplicate nickname", "/api/v1/auth/register", RegisterInput{Nickname: "erin", Email: "other@example.com", Password: "password123"}, http.StatusConflict},
		{"short password", "/api/v1/auth/register", RegisterInput{Nickname: "frank", Email: "frank@example.com", Password: "short"}, http.StatusBadRequest},
		{"unknown account type", "/api/v1/auth/register", RegisterInput{Nickname: "frank", Email: "frank@example.com", Password: "password123", AccountType: "robot"}, http.StatusBadRequest},
		{"bot account", "/api/v1/auth/register", RegisterInput{Nickname: "beep", Email: "beep@example.com", Password: "password123", AccountType: "bot"}, http.StatusCreated},
		{"login by nickname", "/api/v1/auth/login", LoginInput{Login: "erin", Password: "password123"}, http.StatusOK},
		{"login by email", "/api/v1/auth/login", LoginInput{Login: "erin@example.com", Password: "password123"}, http.StatusOK},
		{"wrong password", "/api/v1/auth/login", LoginInput{Login: "erin", Password: "password124"}, http.StatusUnauthorized},
		{"unknown login", "/api/v1/auth/login", LoginInput{Login: "nobody", Password: "password123"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, tt.path, "", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestRelationFlow(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.user("alice", models.AccountTypeUser)
	bob, bobToken := ts.user("bob", models.AccountTypeUser)

	path := func(id uuid.UUID, action string) string {
		return "/api/v1/users/" + id.String() + "/" + action
	}

	w := ts.do(http.MethodPost, path(bob.ID, "request"), aliceToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[ActionResponse](t, w)
	assert.Equal(t, models.StatusFriendRequestSender, res.Relationship.Mine)
	assert.Equal(t, models.StatusFriendRequestReceiver, res.Relationship.Theirs)

	w = ts.do(http.MethodPost, path(bob.ID, "request"), aliceToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_has_relationship", decode[ErrorResponse](t, w).Code)

	// Only the receiver can accept.
	w = ts.do(http.MethodPost, path(bob.ID, "accept"), aliceToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_relationship_status", decode[ErrorResponse](t, w).Code)

	w = ts.do(http.MethodPost, path(alice.ID, "accept"), bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res = decode[ActionResponse](t, w)
	assert.Equal(t, models.StatusFriends, res.Relationship.Mine)
	assert.Equal(t, models.StatusFriends, res.Relationship.Theirs)

	w = ts.do(http.MethodGet, "/api/v1/users/me", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[PrivateUserResponse](t, w)
	assert.Equal(t, int64(1), me.FriendsCount)
	assert.Equal(t, "alice@example.com", me.Email)

	w = ts.do(http.MethodGet, "/api/v1/users/"+alice.ID.String(), bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[PublicUserResponse](t, w)
	require.NotNil(t, profile.RelationToMe)
	require.NotNil(t, profile.MeToRelation)
	assert.Equal(t, models.StatusFriends, *profile.RelationToMe)
	assert.Equal(t, models.StatusFriends, *profile.MeToRelation)

	w = ts.do(http.MethodPost, path(alice.ID, "unfriend"), bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[ActionResponse](t, w)
	assert.Equal(t, models.StatusNone, res.Relationship.Mine)
	assert.Equal(t, models.StatusNone, res.Relationship.Theirs)

	w = ts.do(http.MethodPost, path(alice.ID, "unfriend"), bobToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "relation_not_found", decode[ErrorResponse](t, w).Code)

	w = ts.do(http.MethodPost, path(bob.ID, "block"), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusBlocked, decode[ActionResponse](t, w).Relationship.Mine)

	w = ts.do(http.MethodPost, path(bob.ID, "block"), aliceToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_blocked", decode[ErrorResponse](t, w).Code)

	w = ts.do(http.MethodPost, path(alice.ID, "request"), bobToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_has_relationship", decode[ErrorResponse](t, w).Code)

	w = ts.do(http.MethodPost, path(bob.ID, "unblock"), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/users/"+bob.ID.String()+"/relationship", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rel := decode[RelationshipResponse](t, w)
	assert.Equal(t, models.StatusNone, rel.Mine)
	assert.Equal(t, models.StatusNone, rel.Theirs)
}

func TestPendingRequestActions(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.user("alice", models.AccountTypeUser)
	bob, bobToken := ts.user("bob", models.AccountTypeUser)

	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/v1/users/"+bob.ID.String()+"/request", aliceToken, nil).Code)

	w := ts.do(http.MethodPost, "/api/v1/users/"+alice.ID.String()+"/cancel", bobToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/users/"+alice.ID.String()+"/deny", bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/v1/users/"+bob.ID.String()+"/request", aliceToken, nil).Code)
	w = ts.do(http.MethodPost, "/api/v1/users/"+bob.ID.String()+"/cancel", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusNone, decode[ActionResponse](t, w).Relationship.Theirs)
}

func TestRelationErrors(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.user("alice", models.AccountTypeUser)
	bot, _ := ts.user("helper", models.AccountTypeBot)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantErr  string
	}{
		{"malformed id", "/api/v1/users/42/request", http.StatusBadRequest, ""},
		{"self", "/api/v1/users/" + alice.ID.String() + "/request", http.StatusBadRequest, "self_relation"},
		{"bot target", "/api/v1/users/" + bot.ID.String() + "/request", http.StatusBadRequest, "invalid_relation_to_bot"},
		{"unknown user", "/api/v1/users/" + uuid.NewString() + "/request", http.StatusNotFound, "user_not_found"},
		{"block unknown user", "/api/v1/users/" + uuid.NewString() + "/block", http.StatusNotFound, "user_not_found"},
		{"accept nothing", "/api/v1/users/" + bot.ID.String() + "/accept", http.StatusNotFound, "relation_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, tt.path, aliceToken, nil)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, w).Code)
			}
		})
	}

	t.Run("unauthenticated", func(t *testing.T) {
		w := ts.do(http.MethodPost, "/api/v1/users/"+bot.ID.String()+"/block", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bots can be blocked", func(t *testing.T) {
		w := ts.do(http.MethodPost, "/api/v1/users/"+bot.ID.String()+"/block", aliceToken, nil)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})
}

func TestGetRelations(t *testing.T) {
	ts := newTestServer(t)
	_, aliceToken := ts.user("alice", models.AccountTypeUser)
	bob, _ := ts.user("bob", models.AccountTypeUser)
	carol, _ := ts.user("carol", models.AccountTypeUser)
	dave, _ := ts.user("dave", models.AccountTypeUser)

	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/v1/users/"+bob.ID.String()+"/request", aliceToken, nil).Code)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/v1/users/"+carol.ID.String()+"/request", aliceToken, nil).Code)
	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/v1/users/"+dave.ID.String()+"/block", aliceToken, nil).Code)

	w := ts.do(http.MethodGet, "/api/v1/users/me/relations", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[PaginatedRelationResponse](t, w)
	assert.Equal(t, int64(3), all.Meta.TotalItems)
	assert.Len(t, all.Data, 3)

	w = ts.do(http.MethodGet, "/api/v1/users/me/relations?status=friend_request_sender&limit=1", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sent := decode[PaginatedRelationResponse](t, w)
	assert.Equal(t, int64(2), sent.Meta.TotalItems)
	assert.Equal(t, 2, sent.Meta.TotalPages)
	require.Len(t, sent.Data, 1)
	assert.Equal(t, models.StatusFriendRequestSender, sent.Data[0].Status)

	w = ts.do(http.MethodGet, "/api/v1/users/me/relations?status=blocked", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	blocked := decode[PaginatedRelationResponse](t, w)
	require.Len(t, blocked.Data, 1)
	assert.Equal(t, "dave", blocked.Data[0].User.Nickname)

	w = ts.do(http.MethodGet, "/api/v1/users/me/relations?status=enemies", aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_status", decode[ErrorResponse](t, w).Code)
}

func TestSearchUsers(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.user("sam", models.AccountTypeUser)
	ts.user("samantha", models.AccountTypeUser)
	ts.user("samuel", models.AccountTypeBot)
	ts.user("zoe", models.AccountTypeUser)

	w := ts.do(http.MethodGet, "/api/v1/users?q=SAM", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[PaginatedUserResponse](t, w)

	var names []string
	for _, u := range page.Data {
		names = append(names, u.Nickname)
	}
	assert.ElementsMatch(t, []string{"samantha", "samuel"}, names)
}

func TestGetProfile(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.user("alice", models.AccountTypeUser)
	bob, _ := ts.user("bob", models.AccountTypeUser)
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/api/v1/users/"+bob.ID.String()+"/request", aliceToken, nil).Code)

	w := ts.do(http.MethodGet, "/api/v1/profiles/"+bob.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	anon := decode[PublicUserResponse](t, w)
	assert.Equal(t, "bob", anon.Nickname)
	assert.Equal(t, int64(1), anon.IncomingRequests)
	assert.Nil(t, anon.RelationToMe)
	assert.Nil(t, anon.MeToRelation)
	assert.NotContains(t, w.Body.String(), "email")

	w = ts.do(http.MethodGet, "/api/v1/profiles/"+bob.ID.String(), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	viewed := decode[PublicUserResponse](t, w)
	require.NotNil(t, viewed.MeToRelation)
	assert.Equal(t, models.StatusFriendRequestSender, *viewed.MeToRelation)

	w = ts.do(http.MethodGet, "/api/v1/profiles/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Own id through /users/:id answers with the private profile.
	w = ts.do(http.MethodGet, "/api/v1/users/"+alice.ID.String(), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
}

func TestEvents(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.user("alice", models.AccountTypeUser)
	bob, bobToken := ts.user("bob", models.AccountTypeUser)

	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events?token=" + bobToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ts.hub.Online(bob.ID) }, time.Second, 10*time.Millisecond)

	w := ts.do(http.MethodPost, "/api/v1/users/"+bob.ID.String()+"/request", aliceToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type    string                 `json:"type"`
		Payload relation.EventPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "relation.request_received", event.Type)
	assert.Equal(t, alice.ID, event.Payload.UserID)
	assert.Equal(t, models.StatusFriendRequestReceiver, event.Payload.Status)

	conn.Close()
	assert.Eventually(t, func() bool { return !ts.hub.Online(bob.ID) }, time.Second, 10*time.Millisecond)
}

func TestEvents_RequiresToken(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/api/v1/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEvents_RejectsDeletedAccount(t *testing.T) {
	ts := newTestServer(t)
	token, err := jwt.GenerateToken(uuid.New())
	require.NoError(t, err)

	w := ts.do(http.MethodGet, "/api/v1/events", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetRelationship_UnknownUser(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.user("alice", models.AccountTypeUser)

	w := ts.do(http.MethodGet, "/api/v1/users/"+uuid.NewString()+"/relationship", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "user_not_found", decode[ErrorResponse](t, w).Code)
}

func TestPagination_HugePageNumber(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.user("alice", models.AccountTypeUser)
	ts.user("bob", models.AccountTypeUser)

	for _, path := range []string{
		"/api/v1/users?page=9223372036854775807&limit=10",
		"/api/v1/users/me/relations?page=9223372036854775807",
	} {
		t.Run(path, func(t *testing.T) {
			w := ts.do(http.MethodGet, path, token, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			page := decode[PaginatedResponse[json.RawMessage]](t, w)
			assert.Empty(t, page.Data)
			assert.Equal(t, math.MaxInt32/10, page.Meta.CurrentPage)
		})
	}
}
