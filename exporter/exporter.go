package exporter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"mkvert/calculator"
	"mkvert/config"
	"mkvert/model"
)

const (
	Version                 = "mkvert/v1"
	TypeOfFirstFixedSurface = 119
	StandardName            = "atmosphere_hybrid_sigma_pressure_coordinate"
	FormulaTerms            = "ap: hybrid_coef_A b: hybrid_coef_B ps: surface_air_pressure"
)

// GridLevel is one half-level, numbered from 1 at the top of the column.
type GridLevel struct {
	Level int     `json:"level" yaml:"level"`
	A     float64 `json:"Ai" yaml:"Ai"`
	B     float64 `json:"Bi" yaml:"Bi"`
}

type Provenance struct {
	Source         string                `json:"source,omitempty" yaml:"source,omitempty"`
	GeneratedAt    time.Time             `json:"generated_at" yaml:"generated_at"`
	Levels         int                   `json:"levels" yaml:"levels"`
	PressureLevels int                   `json:"pressure_levels" yaml:"pressure_levels"`
	SigmaLevels    int                   `json:"sigma_levels" yaml:"sigma_levels"`
	Hybridicity    float64               `json:"hybridicity" yaml:"hybridicity"`
	Rule           string                `json:"full_level_rule" yaml:"full_level_rule"`
	Domains        []model.DomainSpec    `json:"domains" yaml:"domains"`
	Reference      model.ReferenceParams `json:"reference" yaml:"reference"`
	Iterations     int                   `json:"iterations" yaml:"iterations"`
	Residual       float64               `json:"residual" yaml:"residual"`
}

// Table 坐标交换格式
type Table struct {
	Version                 string      `json:"version" yaml:"version"`
	TypeOfFirstFixedSurface int         `json:"typeoffirstfixedsurface" yaml:"typeoffirstfixedsurface"`
	StandardName            string      `json:"standard_name" yaml:"standard_name"`
	FormulaTerms            string      `json:"formula_terms" yaml:"formula_terms"`
	GridLevels              []GridLevel `json:"gridlevels" yaml:"gridlevels"`
	Provenance              Provenance  `json:"provenance" yaml:"provenance"`
}

// Exporter stamps tables with the time of its clock.
type Exporter struct {
	clock clockwork.Clock
}

// New returns an Exporter on clock, or on the real clock if nil.
func New(clock clockwork.Clock) *Exporter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Exporter{clock: clock}
}

// NewTable wraps a converged result built from cfg.
func (e *Exporter) NewTable(cfg *config.Config, res *calculator.Result) *Table {
	n := res.Levels.Len()
	t := &Table{
		Version:                 Version,
		TypeOfFirstFixedSurface: TypeOfFirstFixedSurface,
		StandardName:            StandardName,
		FormulaTerms:            FormulaTerms,
		GridLevels:              make([]GridLevel, n+1),
		Provenance: Provenance{
			Source:         cfg.Source,
			GeneratedAt:    e.clock.Now().UTC(),
			Levels:         n,
			PressureLevels: cfg.Solver.PressureLevels,
			SigmaLevels:    cfg.Solver.SigmaLevels,
			Hybridicity:    cfg.Solver.Hybridicity,
			Rule:           res.Rule.String(),
			Domains:        cfg.Domains,
			Reference:      res.Reference,
			Iterations:     res.Iterations,
			Residual:       res.Residual,
		},
	}
	if res.Partition != nil {
		t.Provenance.Domains = res.Partition.Domains
	}
	for k := 0; k <= n; k++ {
		t.GridLevels[k] = GridLevel{Level: k + 1, A: res.Levels.A[k], B: res.Levels.B[k]}
	}
	return t
}

// Levels returns the coefficients as a table indexed from the top.
func (t *Table) Levels() *model.Levels {
	levels := model.NewLevels(len(t.GridLevels) - 1)
	for k, g := range t.GridLevels {
		levels.A[k], levels.B[k] = g.A, g.B
	}
	return levels
}

// Rule is the full-level rule the table was solved with.
func (t *Table) Rule() calculator.FullLevelRule {
	return calculator.RuleOf(t.Provenance.Rule == calculator.ArithmeticMean.String())
}

func (t *Table) check() error {
	if t.Version != Version {
		return fmt.Errorf("unsupported version %q", t.Version)
	}
	if len(t.GridLevels) < 2 {
		return fmt.Errorf("%d grid levels, need at least 2", len(t.GridLevels))
	}
	for k, g := range t.GridLevels {
		if g.Level != k+1 {
			return fmt.Errorf("grid level %d numbered %d", k+1, g.Level)
		}
	}
	switch t.Provenance.Rule {
	case calculator.ArithmeticMean.String(), calculator.LogPressure.String():
	default:
		return fmt.Errorf("unknown full level rule %q", t.Provenance.Rule)
	}
	return nil
}

// FormatOf picks the format from the file extension, JSON unless .yaml/.yml.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return config.FormatYAML
	}
	return config.FormatJSON
}

func (t *Table) Encode(w io.Writer, format string) error {
	var err error
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(t)
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(t); err == nil {
			err = enc.Close()
		}
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return &model.ExportError{Err: err}
	}
	return nil
}

func Decode(r io.Reader, format string) (*Table, error) {
	t := &Table{}
	var err error
	switch format {
	case config.FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(t)
	case config.FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		err = dec.Decode(t)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err == nil {
		err = t.check()
	}
	if err != nil {
		return nil, &model.ExportError{Err: err}
	}
	return t, nil
}

// Write encodes the table to path in the format given by its extension.
func (t *Table) Write(path string) error {
	return t.WriteFormat(path, FormatOf(path))
}

// WriteFormat encodes the whole table before creating path, so a failed
// encoding leaves no partial file behind.
func (t *Table) WriteFormat(path, format string) error {
	var buf bytes.Buffer
	if err := t.Encode(&buf, format); err != nil {
		return withPath(err, path)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return &model.ExportError{Path: path, Err: err}
	}
	log.WithFields(log.Fields{
		"path":   path,
		"format": format,
		"levels": len(t.GridLevels) - 1,
	}).Info("coordinate table written")
	return nil
}

func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &model.ExportError{Path: path, Err: err}
	}
	defer f.Close()
	t, err := Decode(f, FormatOf(path))
	if err != nil {
		return nil, withPath(err, path)
	}
	return t, nil
}

func withPath(err error, path string) error {
	var expErr *model.ExportError
	if errors.As(err, &expErr) && expErr.Path == "" {
		expErr.Path = path
	}
	return err
}
