package transport

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/roach88/threadpost/internal/content"
)

// DryRun logs messages instead of publishing them.
type DryRun struct {
	logger logrus.FieldLogger
}

// NewDryRun creates a dry-run transport.
func NewDryRun(logger logrus.FieldLogger) *DryRun {
	return &DryRun{logger: logger}
}

// Submit logs the message and returns a fresh "dryrun-" id.
func (d *DryRun) Submit(ctx context.Context, text, replyTo string) (content.Receipt, error) {
	if strings.TrimSpace(text) == "" {
		return content.Receipt{}, ErrEmptyText
	}
	id := "dryrun-" + uuid.Must(uuid.NewV7()).String()
	d.logger.WithFields(logrus.Fields{
		"external_id": id,
		"reply_to":    replyTo,
		"text":        text,
	}).Info("dry run: would publish")
	return content.Receipt{ExternalID: id}, nil
}
