// Package pdf renders the enrollment form with go-pdf/fpdf.
package pdf

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// Field is one labelled row in a form section.
type Field struct {
	Label string
	Value string
}

// EnrollmentForm is everything printed on the form.
type EnrollmentForm struct {
	ID            uint
	StudentName   string
	Email         string
	Phone         string
	Address       string
	DateOfBirth   string
	CourseName    string
	CoursePrice   string
	PaymentStatus string
	PaymentID     string
	PaymentAmount string
	PaymentDate   *time.Time
	SubmittedAt   time.Time
	// Extra holds the free-form answers captured by the form.
	Extra map[string]any
}

const (
	marginX    = 15.0
	labelWidth = 55.0
	rowHeight  = 8.0
)

// RenderEnrollmentForm writes an A4 form to w.
func RenderEnrollmentForm(w io.Writer, form EnrollmentForm) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(marginX, 15, marginX)
	doc.SetAutoPageBreak(true, 20)
	doc.SetTitle(fmt.Sprintf("Enrollment #%d", form.ID), true)
	doc.SetCreator("CarePath Academy", true)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFooterFunc(func() {
		doc.SetY(-15)
		doc.SetFont("Helvetica", "I", 8)
		doc.SetTextColor(120, 120, 120)
		doc.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", doc.PageNo()), "", 0, "C", false, 0, "")
	})
	doc.AliasNbPages("")
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 18)
	doc.SetTextColor(20, 60, 110)
	doc.CellFormat(0, 12, "CarePath Academy", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 12)
	doc.SetTextColor(60, 60, 60)
	doc.CellFormat(0, 7, "Course Enrollment Form", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 9)
	submitted := form.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}
	doc.CellFormat(0, 6, fmt.Sprintf("Reference #%d   Submitted %s", form.ID, submitted.UTC().Format("02 Jan 2006 15:04 MST")), "", 1, "L", false, 0, "")
	doc.Ln(4)

	section(doc, tr, "Student", []Field{
		{"Full name", form.StudentName},
		{"Email", form.Email},
		{"Phone", form.Phone},
		{"Address", form.Address},
		{"Date of birth", form.DateOfBirth},
	})

	section(doc, tr, "Course", []Field{
		{"Course", orDash(form.CourseName)},
		{"Price", orDash(form.CoursePrice)},
	})

	if extra := extraFields(form.Extra); len(extra) > 0 {
		section(doc, tr, "Additional information", extra)
	}

	payment := []Field{{"Status", form.PaymentStatus}}
	if form.PaymentID != "" {
		payment = append(payment, Field{"Reference", form.PaymentID})
	}
	if form.PaymentAmount != "" {
		payment = append(payment, Field{"Amount", form.PaymentAmount})
	}
	if form.PaymentDate != nil {
		payment = append(payment, Field{"Paid on", form.PaymentDate.UTC().Format("02 Jan 2006")})
	}
	section(doc, tr, "Payment", payment)

	doc.Ln(14)
	y := doc.GetY()
	doc.SetDrawColor(80, 80, 80)
	doc.Line(marginX, y, marginX+75, y)
	doc.Line(marginX+100, y, marginX+160, y)
	doc.SetFont("Helvetica", "", 9)
	doc.SetXY(marginX, y+1)
	doc.CellFormat(75, 5, "Student signature", "", 0, "L", false, 0, "")
	doc.SetX(marginX + 100)
	doc.CellFormat(60, 5, "Date", "", 1, "L", false, 0, "")

	if err := doc.Error(); err != nil {
		return fmt.Errorf("pdf: render: %w", err)
	}
	return doc.Output(w)
}

func section(doc *fpdf.Fpdf, tr func(string) string, title string, fields []Field) {
	doc.SetFont("Helvetica", "B", 11)
	doc.SetFillColor(230, 238, 248)
	doc.SetTextColor(20, 60, 110)
	doc.CellFormat(0, rowHeight, tr(title), "", 1, "L", true, 0, "")
	doc.SetTextColor(30, 30, 30)

	pageW, _ := doc.GetPageSize()
	valueWidth := pageW - 2*marginX - labelWidth
	for _, f := range fields {
		doc.SetFont("Helvetica", "B", 10)
		x, y := doc.GetXY()
		doc.CellFormat(labelWidth, rowHeight, tr(f.Label), "B", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.SetXY(x+labelWidth, y)
		doc.MultiCell(valueWidth, rowHeight, tr(orDash(f.Value)), "B", "L", false)
	}
	doc.Ln(4)
}

// extraFields flattens form answers into sorted rows, skipping the keys
// already printed in the fixed sections.
func extraFields(extra map[string]any) []Field {
	skip := map[string]bool{
		"studentName": true, "email": true, "phone": true,
		"address": true, "dateOfBirth": true, "courseId": true,
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, Field{Label: humanize(k), Value: valueString(extra[k])})
	}
	return out
}

func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, valueString(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

// humanize turns "emergencyContactName" into "Emergency contact name".
func humanize(key string) string {
	var b strings.Builder
	for i, r := range key {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
		case i > 0 && r >= 'A' && r <= 'Z':
			b.WriteRune(' ')
			b.WriteRune(r + ('a' - 'A'))
		case i == 0 && r >= 'a' && r <= 'z':
			b.WriteRune(r - ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
