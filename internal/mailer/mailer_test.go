package mailer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"github.com/xaenox/daily-brief/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeDialer struct {
	sent []*mail.Msg
	err  error
}

func (d *fakeDialer) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, messages...)
	return nil
}

var recipient = models.UserProfile{Phone: "+15551234567", Email: "a@example.com"}

func writeAttachment(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "+15551234567_20261016.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.3 test"), 0o644))
	return path
}

var briefDate = time.Date(2026, 10, 16, 14, 0, 0, 0, time.UTC)

func newTestMailer(d Dialer, logger *zap.Logger) *Mailer {
	return NewWithDialer(d, "brief@example.com", logger)
}

func TestBuild(t *testing.T) {
	m := newTestMailer(&fakeDialer{}, zaptest.NewLogger(t))

	msg, err := m.Build(recipient, writeAttachment(t), briefDate)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()

	assert.Contains(t, raw, "Subject: Your Daily Brief - 2026-10-16")
	assert.Contains(t, raw, "a@example.com")
	assert.Contains(t, raw, "brief@example.com")
	assert.Contains(t, raw, "attachment")
	assert.Contains(t, raw, "+15551234567_20261016.pdf")
	assert.Len(t, msg.GetAttachments(), 1)
}

func TestBuild_InvalidRecipient(t *testing.T) {
	m := newTestMailer(&fakeDialer{}, zaptest.NewLogger(t))
	_, err := m.Build(models.UserProfile{Email: "nope"}, writeAttachment(t), briefDate)
	assert.Error(t, err)
}

func TestSend(t *testing.T) {
	d := &fakeDialer{}
	core, logs := observer.New(zap.InfoLevel)
	m := newTestMailer(d, zap.New(core))

	require.NoError(t, m.Send(context.Background(), recipient, writeAttachment(t), briefDate))

	assert.Len(t, d.sent, 1)
	assert.Equal(t, 1, logs.FilterMessage("Email sent").Len())
}

func TestSend_Failure(t *testing.T) {
	d := &fakeDialer{err: errors.New("535 authentication failed")}
	core, logs := observer.New(zap.InfoLevel)
	m := newTestMailer(d, zap.New(core))

	err := m.Send(context.Background(), recipient, writeAttachment(t), briefDate)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")
	assert.Equal(t, 1, logs.FilterMessage("Failed to send email").Len())
	assert.Equal(t, 0, logs.FilterMessage("Email sent").Len())
}

func TestBuild_SubjectUsesGivenDate(t *testing.T) {
	m := newTestMailer(&fakeDialer{}, zaptest.NewLogger(t))

	msg, err := m.Build(recipient, writeAttachment(t), time.Date(2026, 10, 15, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, []string{"Your Daily Brief - 2026-10-15"}, msg.GetGenHeader(mail.HeaderSubject))
}

func TestSend_MissingAttachment(t *testing.T) {
	d := &fakeDialer{}
	core, logs := observer.New(zap.InfoLevel)
	m := newTestMailer(d, zap.New(core))

	missing := filepath.Join(t.TempDir(), "+15551234567_20261016.pdf")
	err := m.Send(context.Background(), recipient, missing, briefDate)

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, d.sent)
	assert.Equal(t, 1, logs.FilterMessage("Failed to send email").Len())
	assert.Equal(t, 0, logs.FilterMessage("Email sent").Len())
}

func TestNew(t *testing.T) {
	m, err := New(Config{
		Host:     "smtp.gmail.com",
		Port:     465,
		Username: "brief@example.com",
		Password: "secret",
		Timeout:  10 * time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "brief@example.com", m.from)
}
