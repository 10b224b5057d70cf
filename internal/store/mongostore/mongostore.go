// Package mongostore implements store.Store on MongoDB. Transactions need a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"quadrant/backend/internal/models"
	"quadrant/backend/internal/store"
)

const (
	usersCollection = "users"
	edgesCollection = "relation_edges"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Nickname     string    `bson:"nickname"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	AccountType  string    `bson:"account_type"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

type edgeDoc struct {
	InitiatorID string    `bson:"initiator_id"`
	WithID      string    `bson:"with_id"`
	Status      string    `bson:"status"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	edges  *mongo.Collection

	// sess is set on the Store handed to WithTx callbacks.
	sess mongo.SessionContext
}

var _ store.Store = (*Store)(nil)

// Connect dials uri, verifies the primary is reachable and ensures indexes on database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := New(client, database)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client: client,
		users:  db.Collection(usersCollection),
		edges:  db.Collection(edgesCollection),
	}
}

// EnsureIndexes creates the uniqueness constraints the store relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "nickname", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	_, err = s.edges.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "initiator_id", Value: 1}, {Key: "with_id", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "initiator_id", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create edge indexes: %w", err)
	}
	return nil
}

func (s *Store) ctx(ctx context.Context) context.Context {
	if s.sess != nil {
		return s.sess
	}
	return ctx
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrAlreadyExists
	}
	return err
}

func toUserDoc(u *models.User) userDoc {
	return userDoc{
		ID:           u.ID.String(),
		Nickname:     u.Nickname,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		AccountType:  string(u.AccountType),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) model() (models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("user %q: %w", d.ID, err)
	}
	return models.User{
		ID:           id,
		Nickname:     d.Nickname,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		AccountType:  models.AccountType(d.AccountType),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

func (d edgeDoc) model() (models.RelationEdge, error) {
	initiator, err := uuid.Parse(d.InitiatorID)
	if err != nil {
		return models.RelationEdge{}, fmt.Errorf("edge initiator %q: %w", d.InitiatorID, err)
	}
	with, err := uuid.Parse(d.WithID)
	if err != nil {
		return models.RelationEdge{}, fmt.Errorf("edge target %q: %w", d.WithID, err)
	}
	return models.RelationEdge{
		InitiatorID: initiator,
		WithID:      with,
		Status:      models.RelationStatus(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func decodeUsers(ctx context.Context, cur *mongo.Cursor) ([]models.User, error) {
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		u, err := d.model()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	if user.AccountType == "" {
		user.AccountType = models.AccountTypeUser
	}

	_, err := s.users.InsertOne(s.ctx(ctx), toUserDoc(user))
	return translate(err)
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	if err := s.users.FindOne(s.ctx(ctx), filter).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	u, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id.String()})
}

func (s *Store) GetUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	cur, err := s.users.Find(s.ctx(ctx), bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, err
	}
	return decodeUsers(s.ctx(ctx), cur)
}

func (s *Store) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"$or": bson.A{
		bson.M{"nickname": login},
		bson.M{"email": login},
	}})
}

func (s *Store) SearchUsers(ctx context.Context, query string, page store.Page) ([]models.User, int64, error) {
	filter := bson.M{}
	if query != "" {
		filter["nickname"] = primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	}

	total, err := s.users.CountDocuments(s.ctx(ctx), filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "nickname", Value: 1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))
	cur, err := s.users.Find(s.ctx(ctx), filter, opts)
	if err != nil {
		return nil, 0, err
	}
	users, err := decodeUsers(s.ctx(ctx), cur)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func edgeKey(initiatorID, withID uuid.UUID) bson.M {
	return bson.M{"initiator_id": initiatorID.String(), "with_id": withID.String()}
}

func (s *Store) GetEdge(ctx context.Context, initiatorID, withID uuid.UUID) (*models.RelationEdge, error) {
	var doc edgeDoc
	if err := s.edges.FindOne(s.ctx(ctx), edgeKey(initiatorID, withID)).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	edge, err := doc.model()
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func (s *Store) CreateEdge(ctx context.Context, edge *models.RelationEdge) error {
	now := time.Now().UTC()
	edge.CreatedAt, edge.UpdatedAt = now, now

	_, err := s.edges.InsertOne(s.ctx(ctx), edgeDoc{
		InitiatorID: edge.InitiatorID.String(),
		WithID:      edge.WithID.String(),
		Status:      string(edge.Status),
		CreatedAt:   edge.CreatedAt,
		UpdatedAt:   edge.UpdatedAt,
	})
	return translate(err)
}

func (s *Store) PutEdge(ctx context.Context, edge *models.RelationEdge) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set":         bson.M{"status": string(edge.Status), "updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	_, err := s.edges.UpdateOne(s.ctx(ctx), edgeKey(edge.InitiatorID, edge.WithID), update,
		options.Update().SetUpsert(true))
	if err != nil {
		return translate(err)
	}
	edge.UpdatedAt = now
	return nil
}

func (s *Store) SwapEdgeStatus(ctx context.Context, initiatorID, withID uuid.UUID, from, to models.RelationStatus) error {
	filter := edgeKey(initiatorID, withID)
	filter["status"] = string(from)
	res, err := s.edges.UpdateOne(s.ctx(ctx), filter,
		bson.M{"$set": bson.M{"status": string(to), "updated_at": time.Now().UTC()}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteEdge(ctx context.Context, initiatorID, withID uuid.UUID) error {
	_, err := s.edges.DeleteOne(s.ctx(ctx), edgeKey(initiatorID, withID))
	return err
}

func (s *Store) DeleteEdgeUnless(ctx context.Context, initiatorID, withID uuid.UUID, keep models.RelationStatus) error {
	filter := edgeKey(initiatorID, withID)
	filter["status"] = bson.M{"$ne": string(keep)}
	_, err := s.edges.DeleteOne(s.ctx(ctx), filter)
	return err
}

func (s *Store) ListEdges(ctx context.Context, filter store.EdgeFilter, page store.Page) ([]models.RelationEdge, int64, error) {
	q := bson.M{"initiator_id": filter.InitiatorID.String()}
	if filter.Status != "" && filter.Status != models.StatusNone {
		q["status"] = string(filter.Status)
	}

	total, err := s.edges.CountDocuments(s.ctx(ctx), q)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "with_id", Value: 1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))
	cur, err := s.edges.Find(s.ctx(ctx), q, opts)
	if err != nil {
		return nil, 0, err
	}

	var docs []edgeDoc
	if err := cur.All(s.ctx(ctx), &docs); err != nil {
		return nil, 0, err
	}
	edges := make([]models.RelationEdge, 0, len(docs))
	for _, d := range docs {
		e, err := d.model()
		if err != nil {
			return nil, 0, err
		}
		edges = append(edges, e)
	}
	return edges, total, nil
}

func (s *Store) CountEdges(ctx context.Context, initiatorID uuid.UUID) (map[models.RelationStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"initiator_id": initiatorID.String()}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := s.edges.Aggregate(s.ctx(ctx), pipeline)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cur.All(s.ctx(ctx), &rows); err != nil {
		return nil, err
	}

	counts := make(map[models.RelationStatus]int64, len(rows))
	for _, r := range rows {
		counts[models.RelationStatus(r.Status)] = r.Count
	}
	return counts, nil
}

// WithTx runs fn in a multi-document transaction. Calls made inside an existing
// transaction join it.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.sess != nil {
		return fn(s)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		tx := *s
		tx.sess = sc
		return nil, fn(&tx)
	})
	return err
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
