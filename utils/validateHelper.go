package utils

import (
	"context"

	"github.com/mmdatafocus/reconcile_backend/config"
)

// check if id exists, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// MissingResourceIds returns the ids that have no row in T's table.
func MissingResourceIds[T any](ctx context.Context, ids []int) ([]int, error) {
	unqIds := UniqueSlice(ids)
	if len(unqIds) == 0 {
		return nil, nil
	}

	var model T
	var found []int
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&model).Where("id IN ?", unqIds).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	present := make(map[int]bool, len(found))
	for _, id := range found {
		present[id] = true
	}
	var missing []int
	for _, id := range unqIds {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// count records, using WHERE $condition
func ResourceCountWhere[T any](ctx context.Context, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
