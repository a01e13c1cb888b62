package receipts

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"booking-service/internal/app/policies"
)

// Uploader is the object storage the archiver writes to.
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}

// Archiver renders receipts and stores them under receipts/<booking id>.pdf.
type Archiver struct {
	Renderer policies.ReceiptRenderer
	Storage  Uploader
}

func (a Archiver) Archive(ctx context.Context, r policies.Receipt) (string, error) {
	content, err := a.Renderer.Render(r)
	if err != nil {
		return "", err
	}
	location, err := a.Storage.Upload(ctx, ObjectKey(r.BookingID), bytes.NewReader(content), "application/pdf")
	if err != nil {
		return "", fmt.Errorf("receipts: archive %s: %w", r.BookingID, err)
	}
	return location, nil
}

func ObjectKey(bookingID string) string {
	return "receipts/" + bookingID + ".pdf"
}

var _ policies.ReceiptArchiver = Archiver{}
