package model

import (
	"time"

	"gorm.io/datatypes"
)

// CollectionModel stores one whole collection as a JSON document under a
// stable key. Writes replace the document; there are no partial updates.
type CollectionModel struct {
	Key       string         `gorm:"primaryKey;column:key"`
	Doc       datatypes.JSON `gorm:"column:doc"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (CollectionModel) TableName() string { return "collections" }
