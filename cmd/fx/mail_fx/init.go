package mail_fx

import (
	"log"
	"os"
	"strconv"

	"go.uber.org/fx"
	"voxbill/internal/services"
)

var Module = fx.Provide(provideMailService)

func provideMailService() services.IMailService {
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 587 // STARTTLS default; use 465 with SMTP_USE_SSL=true for SMTPS
	}

	cfg := services.SMTPConfig{
		Host:       os.Getenv("SMTP_HOST"),
		Port:       port,
		Username:   os.Getenv("SMTP_USERNAME"),
		Password:   os.Getenv("SMTP_PASSWORD"),
		From:       os.Getenv("SMTP_FROM"),
		FromName:   "VoxBill",
		UseSSL:     os.Getenv("SMTP_USE_SSL") == "true",
		RequireTLS: true,

		AppName:    "VoxBill",
		AppBaseURL: os.Getenv("APP_BASE_URL"),
	}

	mailService, err := services.NewSMTPMailService(cfg)
	if err != nil {
		log.Printf("Failed to initialize SMTP mail service: %v", err)
	}

	return mailService
}
