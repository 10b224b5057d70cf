package gormstore

import (
	"quadrant/backend/internal/store"

	"gorm.io/gorm"
)

// Paginate counts the rows matched by db and fetches one page of them.
func Paginate[T any](db *gorm.DB, page store.Page) ([]T, int64, error) {
	db = db.Session(&gorm.Session{})

	var totalItems int64
	if err := db.Model(new(T)).Count(&totalItems).Error; err != nil {
		return nil, 0, err
	}

	results := []T{}
	if err := db.Offset(page.Offset()).Limit(page.Limit).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, totalItems, nil
}
