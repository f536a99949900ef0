package export

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/jung-kurt/gofpdf"
)

func renderPDF(snapshot Snapshot) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, snapshot.Name)
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	if snapshot.Description != "" {
		pdf.MultiCell(0, 6, snapshot.Description, "0", "L", false)
	}
	visibility := "private"
	if snapshot.IsPublic {
		visibility = "public"
		if snapshot.ShareCode != nil {
			visibility = fmt.Sprintf("public (code %s)", *snapshot.ShareCode)
		}
	}
	pdf.MultiCell(0, 6, fmt.Sprintf("Owner: %s  -  %s  -  created %s", snapshot.OwnerID, visibility, snapshot.CreatedAt), "0", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(40, 8, "Collaborators")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 10)
	userIDs := make([]string, 0, len(snapshot.Collaborators))
	for userID := range snapshot.Collaborators {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)
	for _, userID := range userIDs {
		pdf.MultiCell(0, 6, fmt.Sprintf("%s (%s)", userID, snapshot.Collaborators[userID]), "0", "L", false)
	}
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(40, 8, fmt.Sprintf("Tasks (%d)", len(snapshot.TaskIDs)))
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 10)
	for _, taskID := range snapshot.TaskIDs {
		pdf.MultiCell(0, 6, "- "+taskID, "0", "L", false)
	}
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(40, 8, "Change history")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 10)
	for _, entry := range snapshot.ChangeHistory {
		line := fmt.Sprintf("[%s] %s by %s", entry.Timestamp, entry.ChangeType, entry.UserName)
		pdf.MultiCell(0, 6, line, "0", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
