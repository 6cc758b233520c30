package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dotsetgreg/factkeeper/pkg/bus"
	"github.com/dotsetgreg/factkeeper/pkg/config"
	"github.com/dotsetgreg/factkeeper/pkg/logger"
)

const defaultWhatsAppAPIBase = "https://graph.facebook.com/v18.0"

// WhatsAppChannel receives messages through the Cloud API webhook and
// replies through the Graph messages endpoint.
type WhatsAppChannel struct {
	*BaseChannel
	config     config.WhatsAppConfig
	apiBase    string
	httpClient *http.Client
}

func NewWhatsAppChannel(cfg config.WhatsAppConfig, bus *bus.MessageBus) *WhatsAppChannel {
	apiBase := strings.TrimRight(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = defaultWhatsAppAPIBase
	}
	return &WhatsAppChannel{
		BaseChannel: NewBaseChannel("whatsapp", bus, cfg.AllowFrom),
		config:      cfg,
		apiBase:     apiBase,
		httpClient:  &http.Client{Timeout: sendTimeout},
	}
}

// Start only flips the running flag; inbound traffic arrives through the
// webhook routes mounted on the HTTP server.
func (c *WhatsAppChannel) Start(ctx context.Context) error {
	c.setRunning(true)
	logger.InfoCF("whatsapp", "WhatsApp webhook channel ready", map[string]interface{}{
		"phone_number_id": c.config.PhoneNumberID,
	})
	return nil
}

func (c *WhatsAppChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	return nil
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppOutbound struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

func (c *WhatsAppChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("whatsapp channel not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("recipient is empty")
	}

	body, err := json.Marshal(whatsAppOutbound{
		MessagingProduct: "whatsapp",
		To:               msg.ChatID,
		Type:             "text",
		Text:             whatsAppText{Body: msg.Content},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.apiBase, c.config.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	logger.DebugCF("whatsapp", "Message sent", map[string]interface{}{
		"to":     msg.ChatID,
		"length": len(msg.Content),
	})
	return nil
}

// RegisterRoutes mounts GET and POST /webhook.
func (c *WhatsAppChannel) RegisterRoutes(r gin.IRoutes) {
	r.GET("/webhook", c.verifyWebhook)
	r.POST("/webhook", c.receiveWebhook)
}

func (c *WhatsAppChannel) verifyWebhook(ctx *gin.Context) {
	mode := ctx.Query("hub.mode")
	token := ctx.Query("hub.verify_token")
	challenge := ctx.Query("hub.challenge")

	if mode == "subscribe" && c.config.VerifyToken != "" && token == c.config.VerifyToken {
		logger.InfoC("whatsapp", "Webhook verified")
		ctx.String(http.StatusOK, challenge)
		return
	}
	logger.WarnCF("whatsapp", "Webhook verification failed", map[string]interface{}{
		"mode": mode,
	})
	ctx.String(http.StatusForbidden, "Forbidden")
}

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string       `json:"field"`
			Value webhookValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookValue struct {
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []struct {
		ID        string `json:"id"`
		From      string `json:"from"`
		Timestamp string `json:"timestamp"`
		Type      string `json:"type"`
		Text      *struct {
			Body string `json:"body"`
		} `json:"text"`
	} `json:"messages"`
}

func (c *WhatsAppChannel) receiveWebhook(ctx *gin.Context) {
	var payload webhookPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		logger.WarnCF("whatsapp", "Malformed webhook body", map[string]interface{}{
			"error": err.Error(),
		})
		ctx.String(http.StatusBadRequest, "Bad Request")
		return
	}

	if payload.Object != "whatsapp_business_account" {
		logger.WarnCF("whatsapp", "Ignoring webhook object", map[string]interface{}{
			"object": payload.Object,
		})
		ctx.String(http.StatusOK, "OK")
		return
	}

	published := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			published += c.publishMessages(change.Value)
		}
	}

	logger.DebugCF("whatsapp", "Webhook processed", map[string]interface{}{
		"published": published,
	})
	ctx.String(http.StatusOK, "OK")
}

func (c *WhatsAppChannel) publishMessages(v webhookValue) int {
	displayName := ""
	if len(v.Contacts) > 0 {
		displayName = v.Contacts[0].Profile.Name
	}

	published := 0
	for _, m := range v.Messages {
		if m.From == "" || m.Text == nil || strings.TrimSpace(m.Text.Body) == "" {
			continue
		}
		ok := c.HandleMessage(m.From, m.From, displayName, m.Text.Body, map[string]string{
			"message_id": m.ID,
			"timestamp":  m.Timestamp,
			"received":   time.Now().UTC().Format(time.RFC3339),
		})
		if ok {
			published++
		}
	}
	return published
}
