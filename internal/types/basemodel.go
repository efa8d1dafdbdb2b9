package types

import (
	"context"
	"time"
)

// BaseModel holds the audit columns shared by every persisted model.
// Any changes to this model should be reflected in the database schema by running migrations
type BaseModel struct {
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func GetDefaultBaseModel(_ context.Context) BaseModel {
	now := time.Now().UTC()
	return BaseModel{
		CreatedAt: now,
		UpdatedAt: now,
	}
}
