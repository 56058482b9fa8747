package web

import (
	"bytes"
	"io"
	"net/http"

	"github.com/go-pdf/fpdf"

	appLog "citycal/internal/log"
)

// writeFlyer renders the weekend card as a one-page printable PDF.
func writeFlyer(w io.Writer, data weekendCardData) error {
	pdf := fpdf.New("P", "mm", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("This weekend", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 24)
	pdf.Cell(0, 12, "This weekend")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 13)
	pdf.Cell(0, 8, tr(data.Range))
	pdf.Ln(12)

	if data.Alert != nil {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 7, tr(data.Alert.Message), "1", "", false)
		pdf.Ln(4)
	}
	for _, n := range data.Notices {
		pdf.SetFont("Helvetica", "I", 12)
		pdf.MultiCell(0, 7, tr(n.Label+": "+n.Message), "", "", false)
	}
	if len(data.Notices) > 0 {
		pdf.Ln(4)
	}

	if len(data.Events) == 0 {
		pdf.SetFont("Helvetica", "", 12)
		pdf.Cell(0, 8, "Nothing listed yet.")
	}
	for _, l := range data.Events {
		label := l.BubbleLabel
		if l.Status.IsActive {
			label = "ON NOW"
		}
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(35, 8, tr(label))
		pdf.SetFont("Helvetica", "", 12)
		line := l.Name
		if l.Location != "" {
			line += " - " + l.Location
		}
		pdf.MultiCell(0, 8, tr(line), "", "", false)
	}

	return pdf.Output(w)
}

// WeekendFlyer renders the current weekend card as PDF.
func (s *Server) WeekendFlyer() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeFlyer(&buf, s.weekendData()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Server) handleWeekendFlyer(w http.ResponseWriter, _ *http.Request) {
	body, err := s.WeekendFlyer()
	if err != nil {
		appLog.Error("weekend flyer render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render flyer")
		return
	}
	w.Header().Set("Content-Type", FlyerContentType)
	w.Header().Set("Content-Disposition", `inline; filename="weekend.pdf"`)
	_, _ = w.Write(body)
}
