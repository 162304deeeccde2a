package api

import (
	"time"

	"proviewer/backend/internal/store"
	"proviewer/backend/internal/structure"
	"proviewer/backend/internal/viewer"
)

// PredictRequest carries the sequence submitted from the predict tab.
type PredictRequest struct {
	Sequence string `json:"sequence"`
}

// FetchRequest carries the accession submitted from the AlphaFold DB tab.
type FetchRequest struct {
	UniProtID string `json:"uniprot_id"`
}

// StructureDTO is the API representation of a displayed structure.
type StructureDTO struct {
	Tab            string    `json:"tab"`
	Format         string    `json:"format"`
	Content        string    `json:"content"`
	Accession      string    `json:"accession,omitempty"`
	FileName       string    `json:"file_name"`
	MIME           string    `json:"mime"`
	PLDDT          *float64  `json:"plddt"`
	PLDDTBand      string    `json:"plddt_band,omitempty"`
	ViewerKey      string    `json:"viewer_key"`
	SequenceLength int       `json:"sequence_length,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ViewsResponse lists the structures of a session.
type ViewsResponse struct {
	Items []StructureDTO `json:"items"`
}

// ConfigResponse exposes limits and defaults to the page.
type ConfigResponse struct {
	Title             string   `json:"title"`
	MaxSequenceLength int      `json:"max_sequence_length"`
	MaxUploadBytes    int64    `json:"max_upload_bytes"`
	DefaultSequence   string   `json:"default_sequence"`
	DefaultAccession  string   `json:"default_accession"`
	ViewerHeight      string   `json:"viewer_height"`
	Tabs              []string `json:"tabs"`
	CachedPredictions int64    `json:"cached_predictions"`
}

// FromView converts a stored view.
func FromView(v store.View) StructureDTO {
	format := structure.Format(v.Format)
	dto := StructureDTO{
		Tab:            v.Tab,
		Format:         v.Format,
		Content:        v.Content,
		Accession:      v.Accession,
		FileName:       v.FileName,
		MIME:           format.MIMEType(),
		ViewerKey:      v.ViewerKey,
		SequenceLength: v.SequenceLength,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
	if v.PLDDT != nil {
		score := *v.PLDDT
		dto.PLDDT = &score
		dto.PLDDTBand = string(structure.ConfidenceBand(score))
	}
	return dto
}

// panelFromView builds the template state for a tab.
func panelFromView(tab viewer.Tab, v *store.View) viewer.Panel {
	panel := viewer.Panel{Tab: tab, Label: tab.Label()}
	if v != nil {
		panel.View = viewer.NewPanelView(tab, v.Format, v.ViewerKey, v.FileName, v.Accession, v.PLDDT)
	}
	return panel
}
