package bot

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/xaenox/daily-brief/internal/models"
	"github.com/xaenox/daily-brief/internal/storage"
	"go.uber.org/zap/zaptest"
)

type stubDirectory map[string]models.UserProfile

func (d stubDirectory) Lookup(phone string) (models.UserProfile, bool) {
	p, ok := d[phone]
	return p, ok
}

type panickyRecorder struct{}

func (panickyRecorder) Record(phone, text string) { panic("store unavailable") }

var registered = stubDirectory{
	"+15551234567": {Phone: "+15551234567", Email: "a@example.com"},
}

func post(t *testing.T, h *WebhookHandler, form url.Values, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.Register(e)

	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandleWhatsApp_RegisteredUser(t *testing.T) {
	requests := storage.NewPendingRequests()
	h := NewWebhookHandler(registered, requests, zaptest.NewLogger(t))

	rec := post(t, h, url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"  focus on tech  "}}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/xml")
	assert.Contains(t, rec.Body.String(), "<Response>")
	assert.Contains(t, rec.Body.String(), "Request received!")

	text, ok := requests.Take("+15551234567")
	assert.True(t, ok)
	assert.Equal(t, "focus on tech", text)
}

func TestHandleWhatsApp_LatestMessageWins(t *testing.T) {
	requests := storage.NewPendingRequests()
	h := NewWebhookHandler(registered, requests, zaptest.NewLogger(t))

	post(t, h, url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"markets"}}, nil)
	post(t, h, url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"sports"}}, nil)

	text, _ := requests.Take("+15551234567")
	assert.Equal(t, "sports", text)
}

func TestHandleWhatsApp_UnregisteredUser(t *testing.T) {
	requests := storage.NewPendingRequests()
	h := NewWebhookHandler(registered, requests, zaptest.NewLogger(t))

	rec := post(t, h, url.Values{"From": {"whatsapp:+15550000000"}, "Body": {"hello"}}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not a registered user")
	_, ok := requests.Take("+15550000000")
	assert.False(t, ok)
	assert.Equal(t, 0, requests.Len())
}

func TestHandleWhatsApp_MalformedSender(t *testing.T) {
	for _, from := range []string{"", "+15551234567", "whatsapp:"} {
		t.Run(from, func(t *testing.T) {
			requests := storage.NewPendingRequests()
			h := NewWebhookHandler(registered, requests, zaptest.NewLogger(t))

			rec := post(t, h, url.Values{"From": {from}, "Body": {"hi"}}, nil)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), ReplyError)
			assert.Equal(t, 0, requests.Len())
		})
	}
}

func TestHandleWhatsApp_InternalError(t *testing.T) {
	h := NewWebhookHandler(registered, panickyRecorder{}, zaptest.NewLogger(t))

	rec := post(t, h, url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"hi"}}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ReplyError)
}

// sign computes the provider signature: HMAC-SHA1 over the URL followed by
// the sorted form keys and values.
func sign(token, u string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(u)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestHandleWhatsApp_Signature(t *testing.T) {
	const token = "auth-token"
	const publicURL = "https://brief.example.com/whatsapp"
	form := url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"focus on tech"}}

	t.Run("valid", func(t *testing.T) {
		requests := storage.NewPendingRequests()
		h := NewWebhookHandler(registered, requests, zaptest.NewLogger(t)).
			WithSignatureValidation(token, publicURL)

		rec := post(t, h, form, http.Header{signatureHeader: {sign(token, publicURL, form)}})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, requests.Len())
	})

	t.Run("invalid", func(t *testing.T) {
		requests := storage.NewPendingRequests()
		h := NewWebhookHandler(registered, requests, zaptest.NewLogger(t)).
			WithSignatureValidation(token, publicURL)

		rec := post(t, h, form, http.Header{signatureHeader: {sign("other-token", publicURL, form)}})

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), ReplyError)
		assert.Equal(t, 0, requests.Len())
	})
}

func TestHandleWhatsApp_AccountSID(t *testing.T) {
	const sid = "AC0123456789abcdef0123456789abcdef"

	t.Run("matching", func(t *testing.T) {
		requests := storage.NewPendingRequests()
		h := NewWebhookHandler(registered, requests, zaptest.NewLogger(t)).WithAccountSID(sid)

		rec := post(t, h, url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"hi"}, "AccountSid": {sid}}, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, requests.Len())
	})

	t.Run("other account", func(t *testing.T) {
		requests := storage.NewPendingRequests()
		h := NewWebhookHandler(registered, requests, zaptest.NewLogger(t)).WithAccountSID(sid)

		rec := post(t, h, url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"hi"}, "AccountSid": {"ACffff"}}, nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), ReplyError)
		assert.Equal(t, 0, requests.Len())
	})

	t.Run("missing", func(t *testing.T) {
		requests := storage.NewPendingRequests()
		h := NewWebhookHandler(registered, requests, zaptest.NewLogger(t)).WithAccountSID(sid)

		rec := post(t, h, url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"hi"}}, nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, 0, requests.Len())
	})
}

func TestPhoneFromSender(t *testing.T) {
	phone, err := phoneFromSender("whatsapp:+15551234567")
	assert.NoError(t, err)
	assert.Equal(t, "+15551234567", phone)

	_, err = phoneFromSender("sms")
	assert.ErrorIs(t, err, errMalformedSender)
}
