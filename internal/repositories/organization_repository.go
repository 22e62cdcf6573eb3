package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"voxbill/internal/models/db_models"
)

type OrganizationRepository interface {
	Insert(ctx context.Context, org *db_models.Organization) error
	FindByID(ctx context.Context, id uuid.UUID) (*db_models.Organization, error)
	FindByEmail(ctx context.Context, email string) (*db_models.Organization, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*db_models.Organization, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

type organizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{
		db: db,
	}
}

func (o *organizationRepository) Insert(ctx context.Context, org *db_models.Organization) error {
	return o.db.WithContext(ctx).Create(org).Error
}

func (o *organizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*db_models.Organization, error) {
	var org db_models.Organization
	err := o.db.WithContext(ctx).First(&org, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &org, nil
}

func (o *organizationRepository) FindByEmail(ctx context.Context, email string) (*db_models.Organization, error) {
	var org db_models.Organization
	err := o.db.WithContext(ctx).First(&org, "email = ?", email).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &org, nil
}

func (o *organizationRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*db_models.Organization, error) {
	var org db_models.Organization
	err := o.db.WithContext(ctx).First(&org, "stripe_customer_id = ?", customerID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &org, nil
}

func (o *organizationRepository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return o.db.WithContext(ctx).
		Model(&db_models.Organization{}).
		Where("id = ?", id).
		Update("stripe_customer_id", customerID).Error
}
