package structure

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format names a supported textual structure format.
type Format string

const (
	FormatPDB Format = "pdb"
	FormatCIF Format = "cif"
)

// ErrUnsupportedFormat is returned for anything other than PDB or mmCIF.
var ErrUnsupportedFormat = errors.New("format must be 'pdb' or 'cif'")

// ParseFormat normalises a user supplied format name.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pdb", "ent":
		return FormatPDB, nil
	case "cif", "mmcif":
		return FormatCIF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
	}
}

// FormatFromFilename derives the format from the file extension.
func FormatFromFilename(name string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(strings.TrimSpace(name)), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, name)
	}
	switch strings.ToLower(ext) {
	case "pdb":
		return FormatPDB, nil
	case "cif":
		return FormatCIF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// MIMEType returns the chemical MIME type used for downloads.
func (f Format) MIMEType() string {
	switch f {
	case FormatCIF:
		return "chemical/x-mmcif"
	default:
		return "chemical/x-pdb"
	}
}

func (f Format) String() string {
	return string(f)
}
