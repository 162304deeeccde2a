package structure

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoAtoms is returned when a payload parses but carries no coordinates.
var ErrNoAtoms = errors.New("structure has no atoms")

// Atom is the subset of a coordinate record needed for confidence reporting.
type Atom struct {
	Model     int
	Chain     string
	ResName   string
	ResSeq    string
	Name      string
	HetAtm    bool
	Occupancy float64
	BFactor   float64
}

// Structure holds the atoms of a parsed payload, in file order.
type Structure struct {
	Format Format
	Atoms  []Atom
}

// Parse reads the atom records of a PDB or mmCIF payload. Alternate locations
// collapse to the one with the highest occupancy, the first one on ties.
func Parse(content string, format Format) (*Structure, error) {
	var (
		atoms []Atom
		err   error
	)
	switch format {
	case FormatPDB:
		atoms, err = parsePDB(content)
	case FormatCIF:
		atoms, err = parseCIF(content)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if len(atoms) == 0 {
		return nil, ErrNoAtoms
	}
	return &Structure{Format: format, Atoms: atoms}, nil
}

type atomKey struct {
	model   int
	chain   string
	resSeq  string
	atom    string
	hetatm  bool
	resName string
}

type atomSet struct {
	seen  map[atomKey]int
	atoms []Atom
}

func newAtomSet() *atomSet {
	return &atomSet{seen: make(map[atomKey]int)}
}

// add keeps one copy per atom. A later alternate location replaces the kept
// one in place only when its occupancy is strictly higher.
func (s *atomSet) add(a Atom) {
	key := atomKey{model: a.Model, chain: a.Chain, resSeq: a.ResSeq, atom: a.Name, hetatm: a.HetAtm, resName: a.ResName}
	if i, ok := s.seen[key]; ok {
		if a.Occupancy > s.atoms[i].Occupancy {
			s.atoms[i] = a
		}
		return
	}
	s.seen[key] = len(s.atoms)
	s.atoms = append(s.atoms, a)
}

func parsePDB(content string) ([]Atom, error) {
	set := newAtomSet()
	model, models := 1, 0
	ended := false
	lineNo := 0

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		record := strings.TrimSpace(column(line, 0, 6))
		switch record {
		case "MODEL":
			// Models are numbered in file order since serials may be blank or repeated.
			models++
			model = models
			ended = false
		case "ENDMDL":
			ended = true
		case "ATOM", "HETATM":
			if ended {
				models++
				model = models
				ended = false
			}
			if models == 0 {
				models = 1
			}
			if len(line) < 54 {
				return nil, fmt.Errorf("pdb line %d: atom record too short", lineNo)
			}
			for _, span := range [][2]int{{30, 38}, {38, 46}, {46, 54}} {
				if _, err := strconv.ParseFloat(strings.TrimSpace(column(line, span[0], span[1])), 64); err != nil {
					return nil, fmt.Errorf("pdb line %d: invalid coordinate: %w", lineNo, err)
				}
			}
			set.add(Atom{
				Model:     model,
				Name:      strings.TrimSpace(column(line, 12, 16)),
				ResName:   strings.TrimSpace(column(line, 17, 20)),
				Chain:     strings.TrimSpace(column(line, 21, 22)),
				ResSeq:    strings.TrimSpace(column(line, 22, 27)),
				HetAtm:    record == "HETATM",
				Occupancy: parseLooseFloat(column(line, 54, 60)),
				BFactor:   parseLooseFloat(column(line, 60, 66)),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pdb: %w", err)
	}
	return set.atoms, nil
}

// column returns line[start:end] clipped to the line length.
func column(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return line[start:end]
}

// parseLooseFloat reads a numeric field, treating blanks and mmCIF
// placeholders as zero.
func parseLooseFloat(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" || value == "?" || value == "." {
		return 0
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseCIF(content string) ([]Atom, error) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	var (
		tags   []string
		inLoop bool
		inData bool
		values []string
		set    = newAtomSet()
	)

	flush := func() error {
		if len(tags) == 0 {
			return nil
		}
		if len(values)%len(tags) != 0 {
			return fmt.Errorf("cif atom_site: %d values for %d columns", len(values), len(tags))
		}
		cols := newCIFColumns(tags)
		if cols.bfactor < 0 {
			return errors.New("cif atom_site: missing B_iso_or_equiv column")
		}
		for start := 0; start < len(values); start += len(tags) {
			row := values[start : start+len(tags)]
			atom, err := cols.atom(row)
			if err != nil {
				return err
			}
			set.add(atom)
		}
		tags = nil
		values = nil
		return nil
	}

	for idx, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "loop_":
			if inData {
				if err := flush(); err != nil {
					return nil, err
				}
				inData = false
			}
			inLoop = true
			continue
		case strings.HasPrefix(line, "_"):
			if inLoop && !inData && strings.HasPrefix(line, "_atom_site.") {
				tags = append(tags, strings.Fields(line)[0][len("_atom_site."):])
				continue
			}
			if inData {
				if err := flush(); err != nil {
					return nil, err
				}
				inData = false
			}
			if inLoop && len(tags) == 0 {
				continue
			}
			inLoop = false
			continue
		case line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "data_"):
			if inData {
				if err := flush(); err != nil {
					return nil, err
				}
				inData = false
			}
			if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "data_") {
				inLoop = false
				tags = nil
			}
			continue
		}

		if !inLoop || len(tags) == 0 {
			continue
		}
		inData = true
		tokens, err := splitCIFTokens(line)
		if err != nil {
			return nil, fmt.Errorf("cif line %d: %w", idx+1, err)
		}
		values = append(values, tokens...)
	}
	if inData {
		if err := flush(); err != nil {
			return nil, err
		}
	}
	return set.atoms, nil
}

// splitCIFTokens splits a data line, honouring single and double quotes. A
// quote only closes a value when followed by whitespace or end of line.
func splitCIFTokens(line string) ([]string, error) {
	var tokens []string
	i := 0
	for i < len(line) {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i >= len(line) {
			break
		}
		if q := line[i]; q == '\'' || q == '"' {
			j := i + 1
			for {
				if j >= len(line) {
					return nil, errors.New("unterminated quoted value")
				}
				if line[j] == q && (j+1 == len(line) || line[j+1] == ' ' || line[j+1] == '\t') {
					break
				}
				j++
			}
			tokens = append(tokens, line[i+1:j])
			i = j + 1
			continue
		}
		j := i
		for j < len(line) && line[j] != ' ' && line[j] != '\t' {
			j++
		}
		tokens = append(tokens, line[i:j])
		i = j
	}
	return tokens, nil
}

type cifColumns struct {
	group, atomName, resName, chain, resSeq, insCode, model int
	occupancy, bfactor, x, y, z                             int
}

func newCIFColumns(tags []string) cifColumns {
	index := make(map[string]int, len(tags))
	for i, tag := range tags {
		index[tag] = i
	}
	pick := func(names ...string) int {
		for _, name := range names {
			if i, ok := index[name]; ok {
				return i
			}
		}
		return -1
	}
	return cifColumns{
		group:     pick("group_PDB"),
		atomName:  pick("auth_atom_id", "label_atom_id"),
		resName:   pick("auth_comp_id", "label_comp_id"),
		chain:     pick("auth_asym_id", "label_asym_id"),
		resSeq:    pick("auth_seq_id", "label_seq_id"),
		insCode:   pick("pdbx_PDB_ins_code"),
		model:     pick("pdbx_PDB_model_num"),
		occupancy: pick("occupancy"),
		bfactor:   pick("B_iso_or_equiv"),
		x:         pick("Cartn_x"),
		y:         pick("Cartn_y"),
		z:         pick("Cartn_z"),
	}
}

func (c cifColumns) atom(row []string) (Atom, error) {
	get := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		v := row[i]
		if v == "?" || v == "." {
			return ""
		}
		return v
	}
	for _, i := range []int{c.x, c.y, c.z} {
		if i < 0 {
			continue
		}
		if _, err := strconv.ParseFloat(row[i], 64); err != nil {
			return Atom{}, fmt.Errorf("cif atom_site: invalid coordinate %q", row[i])
		}
	}
	bfactor, err := strconv.ParseFloat(get(c.bfactor), 64)
	if err != nil {
		return Atom{}, fmt.Errorf("cif atom_site: invalid B_iso_or_equiv %q", row[c.bfactor])
	}
	occupancy := 1.0
	if v := get(c.occupancy); v != "" {
		occupancy = parseLooseFloat(v)
	}
	model := 1
	if v := get(c.model); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			model = n
		}
	}
	return Atom{
		Model:     model,
		Name:      get(c.atomName),
		ResName:   get(c.resName),
		Chain:     get(c.chain),
		ResSeq:    get(c.resSeq) + get(c.insCode),
		HetAtm:    strings.EqualFold(get(c.group), "HETATM"),
		Occupancy: occupancy,
		BFactor:   bfactor,
	}, nil
}
