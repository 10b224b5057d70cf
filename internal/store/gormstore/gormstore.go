// Package gormstore implements store.Store on top of gorm for postgres, mysql and sqlite.
package gormstore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quadrant/backend/internal/models"
	"quadrant/backend/internal/store"
)

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey),
		strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return store.ErrAlreadyExists
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) GetUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	users := []models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", keys).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) FindUserByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("nickname = ? OR email = ?", login, login).Take(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) SearchUsers(ctx context.Context, query string, page store.Page) ([]models.User, int64, error) {
	db := s.db.WithContext(ctx).Model(&models.User{}).Order("nickname")
	if query != "" {
		db = db.Where("LOWER(nickname) LIKE ?", "%"+strings.ToLower(query)+"%")
	}
	return Paginate[models.User](db, page)
}

func (s *Store) GetEdge(ctx context.Context, initiatorID, withID uuid.UUID) (*models.RelationEdge, error) {
	var edge models.RelationEdge
	err := s.db.WithContext(ctx).
		Where("initiator_id = ? AND with_id = ?", initiatorID, withID).
		Take(&edge).Error
	if err != nil {
		return nil, translate(err)
	}
	return &edge, nil
}

func (s *Store) CreateEdge(ctx context.Context, edge *models.RelationEdge) error {
	return translate(s.db.WithContext(ctx).Create(edge).Error)
}

func (s *Store) PutEdge(ctx context.Context, edge *models.RelationEdge) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "initiator_id"}, {Name: "with_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(edge).Error
	return translate(err)
}

func (s *Store) SwapEdgeStatus(ctx context.Context, initiatorID, withID uuid.UUID, from, to models.RelationStatus) error {
	res := s.db.WithContext(ctx).Model(&models.RelationEdge{}).
		Where("initiator_id = ? AND with_id = ? AND status = ?", initiatorID, withID, from).
		Update("status", to)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteEdge(ctx context.Context, initiatorID, withID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("initiator_id = ? AND with_id = ?", initiatorID, withID).
		Delete(&models.RelationEdge{}).Error
}

func (s *Store) DeleteEdgeUnless(ctx context.Context, initiatorID, withID uuid.UUID, keep models.RelationStatus) error {
	return s.db.WithContext(ctx).
		Where("initiator_id = ? AND with_id = ? AND status <> ?", initiatorID, withID, keep).
		Delete(&models.RelationEdge{}).Error
}

func (s *Store) ListEdges(ctx context.Context, filter store.EdgeFilter, page store.Page) ([]models.RelationEdge, int64, error) {
	db := s.db.WithContext(ctx).
		Where("initiator_id = ?", filter.InitiatorID).
		Order("updated_at DESC").Order("with_id")
	if filter.Status != "" && filter.Status != models.StatusNone {
		db = db.Where("status = ?", filter.Status)
	}
	return Paginate[models.RelationEdge](db, page)
}

func (s *Store) CountEdges(ctx context.Context, initiatorID uuid.UUID) (map[models.RelationStatus]int64, error) {
	var rows []struct {
		Status models.RelationStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.RelationEdge{}).
		Select("status, COUNT(*) AS count").
		Where("initiator_id = ?", initiatorID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.RelationStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// WithTx runs fn inside a database transaction. Nested calls use savepoints.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
