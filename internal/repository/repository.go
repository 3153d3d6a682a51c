package repository

import "gorm.io/gorm"

// Store errors, aliased so callers and in-memory fakes do not need to know
// which driver produced them.
var (
	ErrNotFound  = gorm.ErrRecordNotFound
	ErrDuplicate = gorm.ErrDuplicatedKey
)
