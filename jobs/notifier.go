package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/contaflow/contaflow/internal/batch"
)

// CompletionNotifier emails the batch submitter when a conversion
// completes, via the mail queue.
type CompletionNotifier struct {
	client *Client
	from   string
	logger *slog.Logger
}

// NewCompletionNotifier constructs a CompletionNotifier.
func NewCompletionNotifier(client *Client, from string, logger *slog.Logger) *CompletionNotifier {
	return &CompletionNotifier{client: client, from: from, logger: logger}
}

// NotifyCompleted enqueues the completion email for a batch.
func (n *CompletionNotifier) NotifyCompleted(ctx context.Context, b batch.Batch) error {
	if b.Email == "" {
		return nil
	}
	_, err := n.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      b.Email,
		Subject: fmt.Sprintf("Protocolo %s processado", b.Protocol),
		Body: fmt.Sprintf("O lote do protocolo %s (CNPJ %s) foi convertido com sucesso e o arquivo está disponível para download.",
			b.Protocol, b.CompanyID),
	})
	if err != nil {
		return err
	}
	n.logger.Info("completion email enqueued",
		slog.Int64("batch_id", b.ID), slog.String("from", n.from), slog.String("to", b.Email))
	return nil
}
