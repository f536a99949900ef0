package export

import (
	"encoding/json"
	"fmt"
)

// Render produces the snapshot in the requested format.
func Render(snapshot Snapshot, format Format) (*Result, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal snapshot: %w", err)
		}
		return &Result{
			Data:        data,
			ContentType: "application/json",
			Filename:    snapshot.ID + ".json",
		}, nil
	case FormatPDF:
		data, err := renderPDF(snapshot)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:        data,
			ContentType: "application/pdf",
			Filename:    snapshot.ID + ".pdf",
		}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}
