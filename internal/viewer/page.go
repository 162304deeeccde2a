package viewer

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"proviewer/backend/internal/structure"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Panel is the rendered state of one tab.
type Panel struct {
	Tab   Tab
	Label string
	View  *PanelView
}

// PanelView describes a loaded structure.
type PanelView struct {
	Format      string
	ViewerKey   string
	FileName    string
	Accession   string
	PLDDT       string
	Band        string
	ContentURL  string
	DownloadURL string
	PlotURL     string
}

// Page is the data handed to the index template.
type Page struct {
	Title             string
	Height            string
	DefaultSequence   string
	DefaultAccession  string
	MaxSequenceLength int
	Panels            []Panel
}

// NewPanelView builds the template view of a stored structure. plddt is nil
// when no metric could be read.
func NewPanelView(tab Tab, format, viewerKey, fileName, accession string, plddt *float64) *PanelView {
	pv := &PanelView{
		Format:      format,
		ViewerKey:   viewerKey,
		FileName:    fileName,
		Accession:   accession,
		ContentURL:  fmt.Sprintf("/api/views/%s", tab),
		DownloadURL: fmt.Sprintf("/api/views/%s/download", tab),
		PlotURL:     fmt.Sprintf("/api/views/%s/plddt.svg", tab),
	}
	if plddt != nil {
		pv.PLDDT = fmt.Sprintf("%.2f", *plddt)
		pv.Band = string(structure.ConfidenceBand(*plddt))
	}
	return pv
}

// RenderPage writes the full HTML page.
func RenderPage(w io.Writer, page Page) error {
	if page.Title == "" {
		page.Title = Title
	}
	if page.Height == "" {
		page.Height = Height
	}
	return pageTemplate.Execute(w, page)
}
