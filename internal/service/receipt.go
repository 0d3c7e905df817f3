package service

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"tourbus/internal/domain"
)

const (
	companyName    = "SRI MURUGAN HOLIDAYS"
	companyTagline = "Premium Bus Travel Services"
)

var receiptNotes = []string{
	"Please carry this receipt and a valid ID proof during travel",
	"Balance amount to be paid at the time of boarding",
	"Reporting time: 30 minutes before departure",
	"For cancellations, contact us at least 24 hours before travel",
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ReceiptService builds booking confirmations for paid trips.
type ReceiptService struct {
	trips *TripService
	now   func() time.Time
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(trips *TripService) *ReceiptService {
	return &ReceiptService{trips: trips, now: time.Now}
}

// Generate builds the receipt of a paid trip. Unpaid trips return ErrTripNotPaid.
func (s *ReceiptService) Generate(ctx context.Context, tripID string) (*domain.Receipt, error) {
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.IsPaid() {
		return nil, fmt.Errorf("receipt for trip %s: %w", trip.ID, ErrTripNotPaid)
	}

	method := trip.PaymentMethod
	if method == "" {
		method = domain.DefaultPaymentMethod
	}

	return &domain.Receipt{
		ReceiptNo:     trip.ID,
		IssuedAt:      s.now(),
		CustomerID:    trip.CustomerID,
		CustomerName:  trip.CustomerName,
		CustomerEmail: trip.CustomerEmail,
		CustomerPhone: trip.CustomerPhone,
		Origin:        trip.Origin,
		Destination:   trip.Destination,
		TravelDate:    trip.TravelDate,
		TimeSlot:      trip.TimeSlot,
		BusClass:      trip.BusClass,
		TripStatus:    trip.Status,
		TotalCost:     trip.Cost,
		AdvancePaid:   trip.AdvancePaid,
		Balance:       trip.Balance(),
		PaymentMethod: method,
		PaymentDate:   trip.PaymentDate,
		Notes:         append([]string(nil), receiptNotes...),
	}, nil
}

// Filename is the download name of the receipt PDF.
func (s *ReceiptService) Filename(receipt *domain.Receipt) string {
	return "Sri_Murugan_Receipt_" + unsafeFilename.ReplaceAllString(receipt.ReceiptNo, "_") + ".pdf"
}

// RenderPDF renders receipt as a single A4 page.
func (s *ReceiptService) RenderPDF(receipt *domain.Receipt) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking Confirmation "+receipt.ReceiptNo, false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// Header band.
	pdf.SetFillColor(26, 188, 156)
	pdf.Rect(0, 0, 210, 40, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetXY(0, 12)
	pdf.CellFormat(210, 10, companyName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(210, 6, companyTagline, "", 1, "C", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(0, 50)
	pdf.CellFormat(210, 10, "BOOKING CONFIRMATION", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(20, 65)
	pdf.Cell(120, 6, "Receipt No: "+receipt.ReceiptNo)
	pdf.Cell(50, 6, "Date: "+receipt.IssuedAt.Format("02/01/2006"))

	section := func(y float64, title string, r, g, b int, rows [][2]string) {
		pdf.SetFillColor(r, g, b)
		pdf.Rect(15, y, 180, float64(14+7*len(rows)), "F")
		pdf.SetXY(20, y+4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 6, title)
		for i, row := range rows {
			pdf.SetXY(25, y+12+float64(7*i))
			pdf.SetFont("Helvetica", "B", 10)
			pdf.Cell(45, 6, row[0]+":")
			pdf.SetFont("Helvetica", "", 10)
			pdf.Cell(0, 6, row[1])
		}
	}

	section(78, "CUSTOMER DETAILS", 240, 240, 240, [][2]string{
		{"Name", orNA(receipt.CustomerName)},
		{"Email", orNA(receipt.CustomerEmail)},
		{"Phone", orNA(receipt.CustomerPhone)},
		{"Customer ID", orNA(receipt.CustomerID)},
	})
	section(128, "TRIP DETAILS", 250, 250, 250, tripRows(receipt))
	section(185, "PAYMENT DETAILS", 230, 255, 230, paymentRows(receipt))

	pdf.SetXY(20, 247)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(0, 6, "IMPORTANT NOTES:")
	pdf.SetFont("Helvetica", "", 9)
	for i, note := range receipt.Notes {
		pdf.SetXY(20, 253+float64(5*i))
		pdf.Cell(0, 5, "- "+note)
	}

	// Footer band.
	pdf.SetFillColor(26, 188, 156)
	pdf.Rect(0, 277, 210, 20, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(0, 280)
	pdf.CellFormat(210, 6, "Thank you for choosing Sri Murugan Holidays!", "", 1, "C", false, 0, "")
	pdf.CellFormat(210, 6, "Have a Safe and Pleasant Journey!", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatReceipt formats the receipt as plain text.
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	var b strings.Builder
	line := strings.Repeat("=", 45)
	rule := strings.Repeat("-", 45)

	fmt.Fprintf(&b, "%s\n%s\n%s\n%s\n", line, center(companyName, 45), center("BOOKING CONFIRMATION", 45), line)
	fmt.Fprintf(&b, "Receipt No: %s\nDate: %s\n\n", receipt.ReceiptNo, receipt.IssuedAt.Format("Jan 02, 2006 3:04 PM"))

	writeRows := func(title string, rows [][2]string) {
		fmt.Fprintf(&b, "%s\n%s\n", title, rule)
		for _, row := range rows {
			fmt.Fprintf(&b, "%-16s %s\n", row[0]+":", row[1])
		}
		b.WriteString("\n")
	}
	writeRows("CUSTOMER DETAILS", [][2]string{
		{"Name", orNA(receipt.CustomerName)},
		{"Email", orNA(receipt.CustomerEmail)},
		{"Phone", orNA(receipt.CustomerPhone)},
	})
	writeRows("TRIP DETAILS", tripRows(receipt))
	writeRows("PAYMENT DETAILS", paymentRows(receipt))

	b.WriteString("IMPORTANT NOTES\n" + rule + "\n")
	for _, note := range receipt.Notes {
		b.WriteString("- " + note + "\n")
	}
	fmt.Fprintf(&b, "%s\n%s\n%s\n", line, center("Have a Safe and Pleasant Journey!", 45), line)
	return b.String()
}

func tripRows(r *domain.Receipt) [][2]string {
	busType := "Non-AC Bus"
	if r.BusClass == domain.BusClassAC {
		busType = "AC Bus"
	}
	return [][2]string{
		{"Route", r.Origin + " to " + r.Destination},
		{"Travel Date", r.TravelDate.Format("Monday, 2 January 2006")},
		{"Departure Time", r.TimeSlot},
		{"Bus Type", busType},
		{"Trip Status", strings.ToUpper(string(r.TripStatus))},
	}
}

func paymentRows(r *domain.Receipt) [][2]string {
	paid := "N/A"
	if !r.PaymentDate.IsZero() {
		paid = r.PaymentDate.Format("02/01/2006")
	}
	return [][2]string{
		{"Total Trip Cost", formatRupees(r.TotalCost)},
		{"Advance Paid", formatRupees(r.AdvancePaid)},
		{"Balance Amount", formatRupees(r.Balance)},
		{"Payment Method", r.PaymentMethod},
		{"Payment Date", paid},
		{"Payment Status", "PAID"},
	}
}

// formatRupees groups digits the Indian way: 180000 -> "Rs. 1,80,000".
func formatRupees(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return "Rs. " + sign + s
	}

	head, tail := s[:len(s)-3], s[len(s)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	groups = append([]string{head}, groups...)
	return "Rs. " + sign + strings.Join(groups, ",") + "," + tail
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return "N/A"
	}
	return v
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", (width-len(s))/2) + s
}
