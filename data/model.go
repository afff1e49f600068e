package data

import (
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

// BaseModel base table struct to be extended by other models.
type BaseModel struct {
	ID         string `gorm:"type:varchar(50);primary_key"`
	CreatedAt  time.Time
	ModifiedAt time.Time
	Version    uint           `gorm:"DEFAULT 0"`
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (model *BaseModel) GetID() string {
	return model.ID
}

// GenID creates a new id for model if its not existent.
func (model *BaseModel) GenID() {
	if model.ID == "" {
		model.ID = xid.New().String()
	}
}

// ValidXID Validates that the supplied string is an xid.
func (model *BaseModel) ValidXID(id string) bool {
	_, err := xid.FromString(id)
	return err == nil
}

func (model *BaseModel) BeforeCreate(_ *gorm.DB) error {
	now := time.Now()
	if model.Version == 0 {
		model.CreatedAt = now
		model.Version = 1
	}
	model.ModifiedAt = now

	model.GenID()
	return nil
}

// BeforeUpdate Updates time stamp every time we update status of a migration.
func (model *BaseModel) BeforeUpdate(_ *gorm.DB) error {
	model.ModifiedAt = time.Now()
	model.Version++
	return nil
}
