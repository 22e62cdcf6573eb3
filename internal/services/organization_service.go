package services

import (
	"context"
	"log"

	"voxbill/internal/models/db_models"
	"voxbill/internal/models/request_models"
	"voxbill/internal/models/response_models"
	"voxbill/internal/repositories"
	"voxbill/pkg/utils"
)

type OrganizationServiceInterface interface {
	Register(ctx context.Context, request request_models.RegisterOrganizationRequest) error
	Login(ctx context.Context, request request_models.LoginRequest) (*response_models.LoginResponse, error)
}

type OrganizationService struct {
	orgRepo repositories.OrganizationRepository
}

func NewOrganizationService(orgRepo repositories.OrganizationRepository) OrganizationServiceInterface {
	return &OrganizationService{
		orgRepo: orgRepo,
	}
}

func (o *OrganizationService) Register(ctx context.Context, request request_models.RegisterOrganizationRequest) error {

	existing, err := o.orgRepo.FindByEmail(ctx, request.Email)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if existing != nil {
		return utils.ErrEmailAlreadyExists
	}

	hashedPassword, err := utils.HashPassword(request.Password)
	if err != nil {
		return utils.ErrDatabaseError
	}

	newOrg := &db_models.Organization{
		Name:         request.Name,
		Email:        request.Email,
		PasswordHash: hashedPassword,
	}

	if err := o.orgRepo.Insert(ctx, newOrg); err != nil {
		log.Printf("register: insert for %s failed: %v", request.Email, err)
		return utils.ErrDatabaseError
	}

	return nil
}

func (o *OrganizationService) Login(ctx context.Context, request request_models.LoginRequest) (*response_models.LoginResponse, error) {

	org, err := o.orgRepo.FindByEmail(ctx, request.Email)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if org == nil {
		return nil, utils.ErrInvalidCredentials
	}

	if err := utils.ComparePasswords(org.PasswordHash, request.Password); err != nil {
		return nil, utils.ErrInvalidCredentials
	}

	token, err := utils.CreateToken(org.ID, utils.RoleOrganization)
	if err != nil {
		return nil, utils.ErrInvalidCredentials
	}

	return &response_models.LoginResponse{
		Token:          token,
		OrganizationID: org.ID,
	}, nil
}
