package org_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
	"voxbill/internal/api/controllers"
	"voxbill/internal/repositories"
	"voxbill/internal/services"
)

var Module = fx.Provide(
	provideOrganizationRepo, provideOrganizationService, provideOrganizationController)

func provideOrganizationRepo(db *gorm.DB) repositories.OrganizationRepository {
	return repositories.NewOrganizationRepository(db)
}

func provideOrganizationService(orgRepo repositories.OrganizationRepository) services.OrganizationServiceInterface {
	return services.NewOrganizationService(orgRepo)
}

func provideOrganizationController(orgService services.OrganizationServiceInterface) *controllers.OrganizationController {
	return controllers.NewOrganizationController(orgService)
}
