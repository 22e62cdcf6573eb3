package response_models

import "github.com/google/uuid"

type LoginResponse struct {
	Token          string    `json:"token"`
	OrganizationID uuid.UUID `json:"organization_id"`
}
