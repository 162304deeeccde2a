package viewer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"proviewer/backend/internal/structure"
)

func TestKeyIsStableAndFormatSensitive(t *testing.T) {
	a := Key(TabPredict, "ATOM", structure.FormatPDB)
	b := Key(TabPredict, "ATOM", structure.FormatPDB)
	if a != b {
		t.Fatalf("expected stable key, got %q and %q", a, b)
	}
	if !strings.HasPrefix(a, "molstar-predict-pdb-") || len(a) != len("molstar-predict-pdb-")+12 {
		t.Fatalf("unexpected key shape %q", a)
	}
	if Key(TabPredict, "ATOM", structure.FormatCIF) == a {
		t.Fatal("expected format to change the key")
	}
	if Key(TabUpload, "ATOM", structure.FormatPDB) == a {
		t.Fatal("expected tab prefix to change the key")
	}
}

func TestParseTab(t *testing.T) {
	for _, tab := range Tabs {
		got, err := ParseTab(strings.ToUpper(string(tab)))
		if err != nil {
			t.Fatalf("parse %s: %v", tab, err)
		}
		if got != tab {
			t.Fatalf("expected %s got %s", tab, got)
		}
	}
	if _, err := ParseTab("history"); !errors.Is(err, ErrUnknownTab) {
		t.Fatalf("expected ErrUnknownTab got %v", err)
	}
}

func TestDownloadName(t *testing.T) {
	tests := []struct {
		name     string
		tab      Tab
		format   structure.Format
		uploaded string
		afdb     string
		want     string
	}{
		{"predict", TabPredict, structure.FormatPDB, "", "", "predicted.pdb"},
		{"afdb", TabAFDB, structure.FormatCIF, "", "AF-Q8W3K0-F1-model_v4.cif", "AF-Q8W3K0-F1-model_v4.cif"},
		{"upload keeps name", TabUpload, structure.FormatCIF, "mine.cif", "", "mine.cif"},
		{"upload fallback", TabUpload, structure.FormatPDB, " ", "", "structure.pdb"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DownloadName(tc.tab, tc.format, tc.uploaded, tc.afdb); got != tc.want {
				t.Fatalf("expected %q got %q", tc.want, got)
			}
		})
	}
}

func TestRenderPage(t *testing.T) {
	score := 91.234
	page := Page{
		DefaultSequence:   DefaultSequence,
		DefaultAccession:  DefaultAccession,
		MaxSequenceLength: 400,
		Panels: []Panel{
			{Tab: TabPredict, Label: TabPredict.Label(), View: NewPanelView(TabPredict, "pdb", "molstar-predict-pdb-abc", "predicted.pdb", "", &score)},
			{Tab: TabUpload, Label: TabUpload.Label()},
			{Tab: TabAFDB, Label: TabAFDB.Label()},
		},
	}
	var buf bytes.Buffer
	if err := RenderPage(&buf, page); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"ProViewer", DefaultSequence, DefaultAccession, "91.23", "band-very_high", "molstar-predict-pdb-abc", "/api/views/predict/download"} {
		if !strings.Contains(html, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}
}
