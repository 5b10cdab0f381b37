// Package handler holds the worker entry points that deliver queued notifications.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"parkshare/config"
	deliverycontext "parkshare/internal/delivery/context"
	"parkshare/internal/domain/constants"
	"parkshare/internal/domain/service"
	"parkshare/internal/infra/rabbitmq"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// PubSubMessage represents the structure of a Pub/Sub push message
type PubSubMessage struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// errMalformedEvent marks events that can never be delivered and must not be retried.
var errMalformedEvent = errors.New("malformed notification event")

// tokenValidator checks a Google-signed OIDC token for the audience.
type tokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// PushHandler delivers notification events received from Pub/Sub push or RabbitMQ.
type PushHandler struct {
	verifyPushAuth bool
	audience       string
	validateToken  tokenValidator
	notifier       service.Notifier
	logger         *slog.Logger
}

// PushHandlerParams holds dependencies for the PushHandler
type PushHandlerParams struct {
	fx.In

	Config   *config.Config
	Logger   *slog.Logger
	Notifier service.Notifier
}

// NewPushHandler creates a new Pub/Sub push handler
func NewPushHandler(params PushHandlerParams) *PushHandler {
	cfg := params.Config
	// Google push subscriptions sign their requests outside of development.
	verifyPushAuth := cfg.Worker.PushAudience != "" ||
		(cfg.PubSub != nil && cfg.PubSub.Provider == constants.PubSubProviderGoogle && cfg.Env.Env != constants.EnvDevelop)

	return &PushHandler{
		verifyPushAuth: verifyPushAuth,
		audience:       cfg.Worker.PushAudience,
		validateToken:  idtoken.Validate,
		notifier:       params.Notifier,
		logger:         params.Logger,
	}
}

// HandlePush handles incoming Pub/Sub push messages. A 5xx asks Pub/Sub to redeliver.
func (h *PushHandler) HandlePush(c echo.Context) error {
	req := c.Request()

	if h.verifyPushAuth {
		if err := h.verifyPubSubToken(req); err != nil {
			h.logger.Warn("[Worker] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var pushMsg PubSubMessage
	if err := c.Bind(&pushMsg); err != nil {
		h.logger.Error("[Worker] Failed to parse push message", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	data, err := base64.StdEncoding.DecodeString(pushMsg.Message.Data)
	if err != nil {
		h.logger.Error("[Worker] Failed to decode message data", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	err = h.deliver(req.Context(), data, pushMsg.Message.Attributes["request_id"])
	switch {
	case err == nil:
		return c.NoContent(http.StatusOK)
	case errors.Is(err, errMalformedEvent):
		// acknowledged so Pub/Sub drops it
		return c.NoContent(http.StatusOK)
	default:
		return c.NoContent(http.StatusServiceUnavailable)
	}
}

// HandleMessage delivers an event body read from the RabbitMQ notification queue.
// Malformed events are dropped, failed deliveries are handed back for retry.
func (h *PushHandler) HandleMessage(ctx context.Context, body []byte) error {
	err := h.deliver(ctx, body, "")
	if errors.Is(err, errMalformedEvent) {
		return rabbitmq.Drop(err)
	}

	return err
}

func (h *PushHandler) deliver(ctx context.Context, data []byte, requestID string) error {
	var event service.NotificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		h.logger.ErrorContext(ctx, "[Worker] Failed to parse notification event", slog.Any("error", err))

		return errors.Wrap(errMalformedEvent, err.Error())
	}
	if event.Notification == nil {
		h.logger.ErrorContext(ctx, "[Worker] Notification event without payload")

		return errMalformedEvent
	}

	requestID = extractRequestID(ctx, requestID, &event)
	reqLogger := h.logger.With(slog.String("request_id", requestID))
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithLogger(ctx, reqLogger)

	n := event.Notification
	if err := h.notifier.Send(ctx, n); err != nil {
		reqLogger.Error("[Worker] Failed to deliver notification",
			slog.String("channel", string(n.Channel)),
			slog.String("template", string(n.Template)),
			slog.Any("error", err),
		)

		return errors.Wrap(err, "deliver notification")
	}

	reqLogger.Info("[Worker] Notification delivered",
		slog.String("channel", string(n.Channel)),
		slog.String("template", string(n.Template)),
	)

	return nil
}

func extractRequestID(ctx context.Context, attribute string, event *service.NotificationEvent) string {
	if attribute != "" {
		return attribute
	}

	if event.RequestID != "" {
		return event.RequestID
	}

	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	return uuid.New().String()
}

func (h *PushHandler) verifyPubSubToken(req *http.Request) error {
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return errors.New("invalid authorization header format")
	}

	audience := h.audience
	if audience == "" {
		scheme := "https"
		if req.TLS == nil {
			scheme = "http" // For local development
		}
		audience = fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)
	}

	payload, err := h.validateToken(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
