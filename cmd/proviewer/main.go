package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"proviewer/backend/internal/afdb"
	"proviewer/backend/internal/esmfold"
	"proviewer/backend/internal/structure"
)

func main() {
	var (
		sequence  = flag.String("sequence", "", "Amino acid sequence to fold with ESMFold")
		file      = flag.String("file", "", "Local .pdb or .cif structure file")
		formatArg = flag.String("format", "", "Format of -file when the extension is not .pdb or .cif")
		accession = flag.String("accession", "", "UniProt accession to fetch from AlphaFold DB")
		outPath   = flag.String("out", "", "Write the structure to this path")
		plotPath  = flag.String("plot", "", "Write a per-residue pLDDT SVG plot to this path")
		timeout   = flag.Duration("timeout", 90*time.Second, "Overall request timeout")
		foldURL   = flag.String("esmfold-url", "", "ESMFold endpoint (env ESMFOLD_BASE_URL)")
		afdbURL   = flag.String("afdb-url", "", "AlphaFold DB files root (env AFDB_BASE_URL)")
	)
	flag.Parse()

	if *foldURL == "" {
		*foldURL = os.Getenv("ESMFOLD_BASE_URL")
	}
	if *afdbURL == "" {
		*afdbURL = os.Getenv("AFDB_BASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	content, format, err := load(ctx, *sequence, *file, *formatArg, *accession, *foldURL, *afdbURL)
	if err != nil {
		logrus.Fatalf("load structure: %v", err)
	}

	parsed, err := structure.Parse(content, format)
	if err != nil {
		logrus.WithError(err).Warn("no pLDDT available")
	} else {
		avg := parsed.AveragePLDDT()
		fmt.Printf("Avg. pLDDT: %.2f (%s)\n", avg, structure.ConfidenceBand(avg))
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(content), 0o644); err != nil {
			logrus.Fatalf("write structure: %v", err)
		}
		logrus.WithField("path", *outPath).Info("structure written")
	}

	if *plotPath != "" {
		if parsed == nil {
			logrus.Fatal("cannot plot a structure without atoms")
		}
		svg, err := structure.PlotResidueConfidence(parsed.ResidueConfidence())
		if err != nil {
			logrus.Fatalf("plot: %v", err)
		}
		if err := os.WriteFile(*plotPath, svg, 0o644); err != nil {
			logrus.Fatalf("write plot: %v", err)
		}
		logrus.WithField("path", *plotPath).Info("plot written")
	}
}

func load(ctx context.Context, sequence, file, formatArg, accession, foldURL, afdbURL string) (string, structure.Format, error) {
	chosen := 0
	for _, v := range []string{sequence, file, accession} {
		if strings.TrimSpace(v) != "" {
			chosen++
		}
	}
	if chosen != 1 {
		return "", "", errors.New("exactly one of -sequence, -file or -accession is required")
	}

	switch {
	case strings.TrimSpace(sequence) != "":
		client, err := esmfold.NewClient(esmfold.Config{BaseURL: foldURL})
		if err != nil {
			return "", "", err
		}
		content, err := client.Fold(ctx, sequence)
		return content, structure.FormatPDB, err
	case strings.TrimSpace(file) != "":
		var (
			format structure.Format
			err    error
		)
		if strings.TrimSpace(formatArg) != "" {
			format, err = structure.ParseFormat(formatArg)
		} else {
			format, err = structure.FormatFromFilename(file)
		}
		if err != nil {
			return "", "", err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return "", "", err
		}
		return string(data), format, nil
	default:
		client := afdb.NewClient(afdb.Config{BaseURL: afdbURL})
		content, err := client.Fetch(ctx, accession, structure.FormatCIF)
		return content, structure.FormatCIF, err
	}
}
