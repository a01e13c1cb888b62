package receipts

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"booking-service/internal/app/policies"
	"booking-service/internal/domain/shared/daterange"
)

// PDFRenderer draws a one-page A4 receipt with a QR code that resolves to the booking.
type PDFRenderer struct {
	// VerifyURL is formatted with the booking id to build the QR payload.
	VerifyURL string
	Brand     string
}

func (r PDFRenderer) Render(rc policies.Receipt) ([]byte, error) {
	if strings.TrimSpace(rc.BookingID) == "" {
		return nil, fmt.Errorf("receipts: booking id required")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.Cell(0, 12, tr(r.brand()+" BOOKING RECEIPT"))
	pdf.Ln(16)
	pdf.SetDrawColor(220, 220, 220)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(8)

	yStart := pdf.GetY()
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(15, yStart, 120, 50, "F")
	pdf.SetXY(20, yStart+6)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "SUMMARY")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range []string{
		"Booking: " + rc.BookingID,
		"Status: " + rc.Status,
		"Issued: " + rc.IssuedAt.UTC().Format("2006-01-02 15:04 MST"),
		"Payment: " + rc.PaymentIntentID,
	} {
		pdf.SetX(20)
		pdf.Cell(0, 7, tr(line))
		pdf.Ln(6)
	}

	qr, err := qrcode.Encode(r.verifyURL(rc.BookingID), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("receipts: qr code: %w", err)
	}
	pdf.RegisterImageOptionsReader("qr", gofpdf.ImageOptions{ImageType: "png"}, bytes.NewReader(qr))
	pdf.ImageOptions("qr", 145, yStart, 45, 0, false, gofpdf.ImageOptions{ImageType: "png"}, 0, "")
	pdf.SetY(yStart + 58)

	sectionTitle(pdf, "STAY")
	pdf.SetFont("Helvetica", "", 11)
	stay := rc.ListingTitle
	if rc.ListingCity != "" {
		stay += ", " + rc.ListingCity
	}
	pdf.Cell(0, 7, tr(stay))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Check-in: %s   Check-out: %s", daterange.FormatDate(rc.CheckIn), daterange.FormatDate(rc.CheckOut)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Guests: %d", rc.Guests))
	pdf.Ln(10)

	sectionTitle(pdf, "GUEST")
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, tr(rc.GuestName))
	pdf.Ln(6)
	if rc.GuestEmail != "" {
		pdf.Cell(0, 7, tr(rc.GuestEmail))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	sectionTitle(pdf, "CHARGES")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(120, 7, fmt.Sprintf("%d night(s) x %s", rc.Nights, rc.NightlyRate.String()), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 7, rc.Total.String(), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(120, 8, "Total paid", "T", 0, "L", false, 0, "")
	pdf.CellFormat(0, 8, rc.Total.String(), "T", 1, "R", false, 0, "")

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(15, 285, 195, 285)
	pdf.SetY(288)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 6, tr("Keep this receipt for your records."), "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("receipts: render: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(0, 8, title, "", 1, "L", true, 0, "")
	pdf.Ln(2)
}

func (r PDFRenderer) brand() string {
	if r.Brand != "" {
		return strings.ToUpper(r.Brand)
	}
	return "STAYS"
}

func (r PDFRenderer) verifyURL(bookingID string) string {
	if r.VerifyURL == "" {
		return "booking:" + bookingID
	}
	if strings.Contains(r.VerifyURL, "%s") {
		return fmt.Sprintf(r.VerifyURL, bookingID)
	}
	return strings.TrimRight(r.VerifyURL, "/") + "/" + bookingID
}

var _ policies.ReceiptRenderer = PDFRenderer{}
