package utils

import "errors"

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrSubscriptionNotFound = errors.New("no active subscription")
	ErrUpstream             = errors.New("billing provider call failed")
	ErrEmailAlreadyExists   = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrDatabaseError        = errors.New("database error")
)
