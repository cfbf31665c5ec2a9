package models

import (
	"context"
	"time"

	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/utils"
	"github.com/google/uuid"
)

// Organization is the tenant boundary. Every other table carries its id.
type Organization struct {
	ID        uuid.UUID `gorm:"type:char(36);primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"email"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrganization struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email"`
}

func CreateOrganization(ctx context.Context, input *NewOrganization) (*Organization, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	// Org names are globally unique; the check runs unscoped.
	if err := utils.ValidateUnique[Organization](ctx, "", "name", input.Name, 0); err != nil {
		return nil, err
	}

	org := Organization{
		ID:    uuid.New(),
		Name:  input.Name,
		Email: input.Email,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

func GetOrganization(ctx context.Context, orgId string) (*Organization, error) {
	return utils.FetchSingleModel[Organization](ctx, orgId)
}

// ValidateOrganization checks the org exists and is active. A missing or
// inactive org is an authorization failure, not a not-found: callers must not
// learn whether an org id exists outside their tenant.
func ValidateOrganization(ctx context.Context, orgId string) error {
	if orgId == "" {
		return utils.NewAuthorizationError("org id is required")
	}
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&Organization{}).
		Where("id = ? AND is_active = 1", orgId).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return utils.NewAuthorizationError("unknown organization")
	}
	return nil
}
