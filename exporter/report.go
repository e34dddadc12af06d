package exporter

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"mkvert/atmosphere"
	"mkvert/calculator"
	"mkvert/model"
)

// ReportRow describes one full level at the standard surface pressure.
type ReportRow struct {
	Level             int
	Domain            string
	A                 float64 // of the half-level above
	B                 float64
	Pressure          float64 // Pa
	Altitude          float64 // m
	Thickness         float64 // m
	PressureThickness float64 // Pa
}

// Report 诊断报表, full levels from the top down.
type Report struct {
	SurfacePressure float64
	Rows            []ReportRow
}

// NewReport evaluates the table with the atmosphere and rule recorded in
// its provenance.
func NewReport(t *Table) (*Report, error) {
	ref := t.Provenance.Reference
	atm, err := atmosphere.New(ref)
	if err != nil {
		return nil, err
	}
	levels := t.Levels()
	prof, err := calculator.Evaluate(levels, ref.SurfacePressure, t.Rule(), atm)
	if err != nil {
		return nil, err
	}

	n := levels.Len()
	r := &Report{SurfacePressure: ref.SurfacePressure, Rows: make([]ReportRow, n)}
	for k := 0; k < n; k++ {
		r.Rows[k] = ReportRow{
			Level:             k + 1,
			Domain:            domainOf(t.Provenance.Domains, n-1-k),
			A:                 levels.A[k],
			B:                 levels.B[k],
			Pressure:          prof.FullPressure[k],
			Altitude:          prof.FullAltitude[k],
			Thickness:         prof.Thickness[k],
			PressureThickness: prof.PressureThickness[k],
		}
	}
	return r, nil
}

// domainOf names the domain holding layer j, counted from the surface.
func domainOf(domains []model.DomainSpec, j int) string {
	below := 0
	for _, d := range domains {
		below += d.Levels
		if j < below {
			return d.Name
		}
	}
	return ""
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Align(lipgloss.Center)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
	nameStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Render draws the report as a text table.
func (r *Report) Render() string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("level", "domain", "A (Pa)", "B", "p (Pa)", "z (m)", "dz (m)", "dp (Pa)").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 1:
				return nameStyle
			}
			return cellStyle
		})
	for _, row := range r.Rows {
		tbl.Row(
			strconv.Itoa(row.Level),
			row.Domain,
			strconv.FormatFloat(row.A, 'f', 3, 64),
			strconv.FormatFloat(row.B, 'f', 6, 64),
			strconv.FormatFloat(row.Pressure, 'f', 2, 64),
			strconv.FormatFloat(row.Altitude, 'f', 2, 64),
			strconv.FormatFloat(row.Thickness, 'f', 2, 64),
			strconv.FormatFloat(row.PressureThickness, 'f', 2, 64),
		)
	}
	return tbl.Render()
}

// WriteSeries writes the plotting series, level against pressure thickness
// and altitude thickness, as CSV.
func (r *Report) WriteSeries(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"level", "pressure_thickness", "altitude_thickness"}); err != nil {
		return &model.ExportError{Err: err}
	}
	for _, row := range r.Rows {
		rec := []string{
			strconv.Itoa(row.Level),
			strconv.FormatFloat(row.PressureThickness, 'g', -1, 64),
			strconv.FormatFloat(row.Thickness, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return &model.ExportError{Err: err}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return &model.ExportError{Err: err}
	}
	return nil
}
