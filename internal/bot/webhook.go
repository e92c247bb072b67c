package bot

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/twiml"
	"github.com/xaenox/daily-brief/internal/metrics"
	"github.com/xaenox/daily-brief/internal/models"
	"go.uber.org/zap"
)

// Reply texts sent back to the messaging provider.
const (
	ReplyAccepted     = "Request received! You'll get it in your next briefing."
	ReplyUnregistered = "⚠️ Not a registered user"
	ReplyError        = "Error processing request"
)

const signatureHeader = "X-Twilio-Signature"

var errMalformedSender = errors.New("malformed sender")

// Directory resolves registered phone numbers.
type Directory interface {
	Lookup(phone string) (models.UserProfile, bool)
}

// RequestRecorder keeps the latest special request per phone.
type RequestRecorder interface {
	Record(phone, text string)
}

// WebhookHandler accepts inbound WhatsApp messages and records them as special requests.
type WebhookHandler struct {
	directory  Directory
	requests   RequestRecorder
	validator  *client.RequestValidator
	publicURL  string
	accountSID string
	logger     *zap.Logger
}

func NewWebhookHandler(directory Directory, requests RequestRecorder, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		directory: directory,
		requests:  requests,
		logger:    logger,
	}
}

// WithSignatureValidation rejects requests whose provider signature does not
// match authToken for the given public webhook URL.
func (h *WebhookHandler) WithSignatureValidation(authToken, publicURL string) *WebhookHandler {
	v := client.NewRequestValidator(authToken)
	h.validator = &v
	h.publicURL = publicURL
	return h
}

// WithAccountSID rejects requests sent on behalf of any other provider account.
func (h *WebhookHandler) WithAccountSID(sid string) *WebhookHandler {
	h.accountSID = sid
	return h
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/whatsapp", h.HandleWhatsApp)
}

func (h *WebhookHandler) HandleWhatsApp(c echo.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("WhatsApp handler panic", zap.Any("panic", r))
			metrics.RecordWebhook(metrics.WebhookError)
			err = h.reply(c, http.StatusOK, ReplyError)
		}
	}()

	if h.validator != nil && !h.validSignature(c) {
		h.logger.Warn("Rejected webhook with invalid signature",
			zap.String("remote_ip", c.RealIP()))
		metrics.RecordWebhook(metrics.WebhookError)
		return h.reply(c, http.StatusForbidden, ReplyError)
	}
	if h.accountSID != "" && c.FormValue("AccountSid") != h.accountSID {
		h.logger.Warn("Rejected webhook for another account",
			zap.String("account_sid", c.FormValue("AccountSid")))
		metrics.RecordWebhook(metrics.WebhookError)
		return h.reply(c, http.StatusForbidden, ReplyError)
	}

	phone, err := phoneFromSender(c.FormValue("From"))
	if err != nil {
		h.logger.Error("WhatsApp handler error", zap.Error(err))
		metrics.RecordWebhook(metrics.WebhookError)
		return h.reply(c, http.StatusOK, ReplyError)
	}
	message := strings.TrimSpace(c.FormValue("Body"))

	if _, ok := h.directory.Lookup(phone); !ok {
		h.logger.Info("Message from unregistered number", zap.String("phone", phone))
		metrics.RecordWebhook(metrics.WebhookRejected)
		return h.reply(c, http.StatusOK, ReplyUnregistered)
	}

	h.requests.Record(phone, message)
	h.logger.Info("Received request",
		zap.String("phone", phone),
		zap.String("message", message))
	metrics.RecordWebhook(metrics.WebhookAccepted)
	return h.reply(c, http.StatusOK, ReplyAccepted)
}

func (h *WebhookHandler) validSignature(c echo.Context) bool {
	form, err := c.FormParams()
	if err != nil {
		return false
	}
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}
	return h.validator.Validate(h.publicURL, params, c.Request().Header.Get(signatureHeader))
}

func (h *WebhookHandler) reply(c echo.Context, status int, text string) error {
	body, err := twiml.Messages([]twiml.Element{&twiml.MessagingMessage{Body: text}})
	if err != nil {
		return fmt.Errorf("failed to build TwiML reply: %w", err)
	}
	return c.Blob(status, echo.MIMEApplicationXMLCharsetUTF8, []byte(body))
}

// phoneFromSender strips the transport prefix, e.g. "whatsapp:+15551234567".
func phoneFromSender(from string) (string, error) {
	parts := strings.Split(from, ":")
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: %q", errMalformedSender, from)
	}
	return strings.TrimSpace(parts[1]), nil
}
