package server

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edgard/zalobot/internal/logger"
	"github.com/edgard/zalobot/internal/zalo"
)

const maxWebhookBody = 1 << 20

// handleWebhookVerify answers the platform's subscription check.
func (s *Server) handleWebhookVerify(c *gin.Context) {
	log := logger.FromContext(c, s.logger)
	mode := c.Query("mode")
	token := c.Query("verify_token")
	want := s.deps.Config.Zalo.VerifyToken

	if mode == "subscribe" && want != "" && token == want {
		log.Info("Webhook verified")
		c.String(http.StatusOK, c.Query("challenge"))
		return
	}
	log.Warn("Webhook verification failed", "mode", mode)
	c.String(http.StatusForbidden, "Forbidden")
}

// handleWebhookEvent checks the signature, then dispatches the event inline.
// Any event that passes the signature check is acknowledged with 200 so the
// platform does not redeliver it, even when processing failed.
func (s *Server) handleWebhookEvent(c *gin.Context) {
	log := logger.FromContext(c, s.logger)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		log.Warn("Failed to read webhook body", "error", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "failed to read body"})
		return
	}

	ev, parseErr := zalo.ParseEvent(body)

	signature := c.GetHeader(zalo.SignatureHeader)
	secret := s.deps.Config.Zalo.WebhookSecret
	if !zalo.SignatureSkipped(signature, secret) && (parseErr != nil || !zalo.VerifySignature(body, ev, signature, secret)) {
		log.Warn("Invalid webhook signature")
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid signature"})
		return
	}

	if parseErr != nil {
		log.Warn("Unparsable webhook body", "error", parseErr, "body", logger.Truncate(string(body), 200))
		c.JSON(http.StatusOK, gin.H{"success": false, "error": parseErr.Error()})
		return
	}

	log.Debug("Webhook event received", "event_type", ev.Type(), "app_id", ev.AppID(), "oa_id", ev.OAID())
	// The event is already marked as seen by the dispatcher, so a platform
	// timeout must not abort it; the analyzer and client timeouts bound it instead.
	outcome := s.deps.Dispatcher.Dispatch(context.WithoutCancel(c.Request.Context()), ev)
	log.Debug("Webhook event handled", "outcome", outcome.String())

	c.JSON(http.StatusOK, gin.H{"success": true})
}
