package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/citrusqa/bitacora-backend/internal/clients/sendgrid"
	"github.com/citrusqa/bitacora-backend/internal/clients/twilio"
	"github.com/citrusqa/bitacora-backend/internal/platform/logger"
	"github.com/citrusqa/bitacora-backend/internal/realtime/bus"
)

type Clients struct {
	Email    sendgrid.Client
	WhatsApp twilio.Client
	SSEBus   bus.Bus
}

// wireClients builds the outbound clients. Email and WhatsApp stay nil when
// their env is absent so local runs work without provider accounts; the
// notifier skips nil channels.
func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	var c Clients

	if strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")) != "" {
		email, err := sendgrid.NewFromEnv(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init sendgrid client: %w", err)
		}
		c.Email = email
	} else {
		log.Warn("SENDGRID_API_KEY not set; email notifications disabled")
	}

	if strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID")) != "" {
		whatsapp, err := twilio.NewFromEnv(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init twilio client: %w", err)
		}
		c.WhatsApp = whatsapp
	} else {
		log.Warn("TWILIO_ACCOUNT_SID not set; WhatsApp notifications disabled")
	}

	if addr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); addr != "" {
		b, err := bus.NewRedisBus(log, addr)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis bus: %w", err)
		}
		c.SSEBus = b
	}

	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
}
