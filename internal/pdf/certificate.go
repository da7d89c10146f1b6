package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/Togather-Foundation/attendance/internal/domain/certificates"
	"github.com/Togather-Foundation/attendance/internal/domain/participants"
	"github.com/go-pdf/fpdf"
)

const (
	// Layout is in points on an A4 page.
	pageMargin    = 50.0
	titleFontSize = 26.0
	bodyFontSize  = 14.0
	signatureRule = "__________________________________"
	dateLayout    = "January 2, 2006"
)

// CertificateRenderer draws the attendance certificate as a single A4 page of
// centered text in an embedded Unicode font.
type CertificateRenderer struct {
	now      func() time.Time
	compress bool
}

func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{now: time.Now, compress: true}
}

// WithClock returns a copy of the renderer that dates certificates using now.
func (r *CertificateRenderer) WithClock(now func() time.Time) *CertificateRenderer {
	out := *r
	out.now = now
	return &out
}

// Render produces the PDF bytes for participant. Output is identical for
// identical inputs on the same day. Text the font cannot draw is an error
// rather than being printed as placeholders.
func (r *CertificateRenderer) Render(participant participants.Participant, event certificates.EventMetadata) ([]byte, error) {
	issuedAt := r.now()
	body := bodySentence(participant.Name, event)
	for _, text := range []string{body, event.Signatory} {
		if err := CheckPrintable(text); err != nil {
			return nil, fmt.Errorf("draw certificate: %w", err)
		}
	}

	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetCompression(r.compress)
	doc.SetCatalogSort(true)
	doc.SetCreationDate(issuedAt)
	doc.SetModificationDate(issuedAt)
	doc.SetTitle("Certificate", false)
	doc.SetCreator("attendance", false)
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(false, pageMargin)
	doc.AddUTF8FontFromBytes(fontFamily, "", regularFont)
	doc.AddUTF8FontFromBytes(fontFamily, "B", boldFont)
	doc.AddPage()

	centered := func(size, lines float64, text string) {
		doc.SetFont(fontFamily, "", size)
		doc.MultiCell(0, size*1.2, text, "", "C", false)
		if lines > 0 {
			doc.Ln(size * 1.2 * lines)
		}
	}

	doc.SetFont(fontFamily, "B", titleFontSize)
	doc.MultiCell(0, titleFontSize*1.2, "CERTIFICATE", "", "C", false)
	doc.Ln(titleFontSize * 1.2 * 2)

	centered(bodyFontSize, 2, body)
	centered(bodyFontSize, 4, "This certificate is granted as proof of participation.")
	centered(bodyFontSize, 6, "Date: "+issuedAt.Format(dateLayout))
	centered(bodyFontSize, 0, signatureRule)
	centered(bodyFontSize, 0, event.Signatory)

	if doc.Err() {
		return nil, fmt.Errorf("draw certificate: %w", doc.Error())
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("write certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func bodySentence(name string, event certificates.EventMetadata) string {
	unit := "hours"
	if event.Hours == 1 {
		unit = "hour"
	}
	return fmt.Sprintf("This certifies that %s attended the event \"%s\", with a total workload of %d %s.",
		name, event.Name, event.Hours, unit)
}
