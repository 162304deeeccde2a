package viewer

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"proviewer/backend/internal/structure"
)

const (
	Title            = "ProViewer"
	DefaultSequence  = "PIAQIHILEGRSDEQKETLIREVSEAISRSLDAPLTSVRVIITEMAKGHFGIGGELASK"
	DefaultAccession = "Q8W3K0"
	Height           = "600px"
)

// Tab identifies one of the three input flows.
type Tab string

const (
	TabPredict Tab = "predict"
	TabUpload  Tab = "upload"
	TabAFDB    Tab = "afdb"
)

// Tabs lists the tabs in display order.
var Tabs = []Tab{TabPredict, TabUpload, TabAFDB}

var ErrUnknownTab = errors.New("unknown tab")

// ParseTab validates a tab name.
func ParseTab(value string) (Tab, error) {
	switch Tab(strings.ToLower(strings.TrimSpace(value))) {
	case TabPredict:
		return TabPredict, nil
	case TabUpload:
		return TabUpload, nil
	case TabAFDB:
		return TabAFDB, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTab, value)
}

// Label is the heading shown on the tab.
func (t Tab) Label() string {
	switch t {
	case TabPredict:
		return "Predict"
	case TabUpload:
		return "Upload"
	case TabAFDB:
		return "AlphaFold DB"
	}
	return string(t)
}

// Key derives a stable widget key from the payload so identical structures
// shown in different tabs never collide.
func Key(tab Tab, content string, format structure.Format) string {
	sum := md5.Sum([]byte(string(format) + ":" + content))
	return fmt.Sprintf("molstar-%s-%s-%s", tab, format, hex.EncodeToString(sum[:])[:12])
}

// DownloadName picks the file name offered when a tab's structure is downloaded.
func DownloadName(tab Tab, format structure.Format, uploadedName, afdbName string) string {
	switch tab {
	case TabPredict:
		return "predicted.pdb"
	case TabAFDB:
		if afdbName != "" {
			return afdbName
		}
	case TabUpload:
		if name := strings.TrimSpace(uploadedName); name != "" {
			return name
		}
	}
	return "structure." + string(format)
}
