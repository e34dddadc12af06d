package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkvert/model"
)

const small = `
[dimensions]
Levels = 10
PressureLevels = 2
SigmaLevels = 1
Domains = 2

[reference]
BottomAltitude = 10

[domain.1]
Name = boundary layer
Levels = 4
TopAltitude = 1500
TopThickness = 500

[domain.2]
Levels = 6
`

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile("../conf/arpege90.ini")
	require.NoError(t, err)

	assert.Equal(t, "../conf/arpege90.ini", cfg.Source)
	assert.Equal(t, 90, cfg.Levels)
	assert.Equal(t, 6, cfg.Solver.PressureLevels)
	assert.Equal(t, 1, cfg.Solver.SigmaLevels)
	require.Len(t, cfg.Domains, 8)
	assert.Equal(t, "planetary boundary layer", cfg.Domains[0].Name)
	assert.Equal(t, 15, cfg.Domains[0].Levels)
	assert.Equal(t, 1000.0, cfg.Domains[0].TopAltitude)
	assert.Equal(t, 150.0, cfg.Domains[0].TopThickness)
	assert.Equal(t, 0.0, cfg.Domains[7].TopAltitude)
	assert.Equal(t, 98945.0, cfg.Reference.ReferencePressure)
	assert.Equal(t, 5.0, cfg.Reference.BottomAltitude)
	assert.Equal(t, -1.6, cfg.Solver.Hybridicity)
	assert.Equal(t, FormatJSON, cfg.Export.Format)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(small))
	require.NoError(t, err)

	assert.Empty(t, cfg.Source)
	assert.Equal(t, 1000.0, cfg.Reference.TopPressure)
	assert.Equal(t, 101325.0, cfg.Reference.SurfacePressure)
	assert.Equal(t, 0.0, cfg.Reference.ReferencePressure)
	assert.Equal(t, 200.0, cfg.Reference.ReferenceAltitude)
	assert.Equal(t, -1.6, cfg.Solver.Hybridicity)
	assert.True(t, cfg.Solver.ArithmeticMean)
	assert.Equal(t, 1e-4, cfg.Solver.Tolerance)
	assert.Equal(t, 100, cfg.Solver.MaxIterations)
	assert.Equal(t, 0.8, cfg.Solver.Relaxation)
	assert.Equal(t, 0.2, cfg.Solver.SurfacePressureMargin)
	assert.Equal(t, FormatJSON, cfg.Export.Format)
	assert.Equal(t, "domain.2", cfg.Domains[1].Name)
}

func TestParse_LastDomainTopIgnored(t *testing.T) {
	src := small + "TopAltitude = 40000\nTopThickness = 900\n"
	cfg, err := Parse([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Domains[1].TopAltitude)
	assert.Equal(t, 0.0, cfg.Domains[1].TopThickness)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		to    string
		field string
	}{
		{"levels missing", "Levels = 10\n", "", "dimensions.Levels"},
		{"levels not a number", "Levels = 10\n", "Levels = ten\n", "dimensions.Levels"},
		{"layers sum to 9", "Levels = 10\n", "Levels = 9\n", "dimensions.Levels"},
		{"too few domain sections", "Domains = 2", "Domains = 3", "domain.3"},
		{"too many domain sections", "Domains = 2", "Domains = 1", "domain.2"},
		{"no domains", "Domains = 2", "Domains = 0", "dimensions.Domains"},
		{"no hybrid level", "PressureLevels = 2", "PressureLevels = 9", "dimensions.Levels"},
		{"no sigma level", "SigmaLevels = 1", "SigmaLevels = 0", "dimensions.SigmaLevels"},
		{"domain top missing", "TopAltitude = 1500\n", "", "domain.1.TopAltitude"},
		{"domain thickness negative", "TopThickness = 500", "TopThickness = -5", "domain.1.TopThickness"},
		{"no bottom anchor", "BottomAltitude = 10", "", "reference.BottomAltitude"},
		{"hybridicity", "[reference]", "[solver]\nHybridicity = -0.5\n[reference]", "solver.Hybridicity"},
		{"tolerance", "[reference]", "[solver]\nTolerance = 0\n[reference]", "solver.Tolerance"},
		{"format", "[reference]", "[export]\nFormat = xml\n[reference]", "export.Format"},
		{"top pressure", "[reference]", "[reference]\nTopPressure = 0", "reference.TopPressure"},
		{"top pressure with unit", "[reference]", "[reference]\nTopPressure = 1 kPa", "reference.TopPressure"},
		{"hybridicity decimal comma", "[reference]", "[solver]\nHybridicity = -0,5\n[reference]", "solver.Hybridicity"},
		{"hybridicity not a number", "[reference]", "[solver]\nHybridicity = abc\n[reference]", "solver.Hybridicity"},
		{"arithmetic mean not a boolean", "[reference]", "[solver]\nArithmeticMean = maybe\n[reference]", "solver.ArithmeticMean"},
		{"tolerance with unit", "[reference]", "[solver]\nTolerance = 1e-4m\n[reference]", "solver.Tolerance"},
		{"iterations not an integer", "[reference]", "[solver]\nMaxIterations = 1.5\n[reference]", "solver.MaxIterations"},
		{"no surface pressure margin", "[reference]", "[solver]\nSurfacePressureMargin = 0\n[reference]", "solver.SurfacePressureMargin"},
		{"narrow surface pressure margin", "[reference]", "[solver]\nSurfacePressureMargin = 0.1\n[reference]", "solver.SurfacePressureMargin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := strings.Replace(small, tt.from, tt.to, 1)
			require.NotEqual(t, small, src)
			_, err := Parse([]byte(src))
			var cfgErr *model.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestParse_ExplicitValues(t *testing.T) {
	src := strings.Replace(small, "[reference]",
		"[solver]\nHybridicity = -2\nArithmeticMean = false\nMaxIterations = 40\nSurfacePressureMargin = 0.3\n[reference]", 1)
	cfg, err := Parse([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, -2.0, cfg.Solver.Hybridicity)
	assert.False(t, cfg.Solver.ArithmeticMean)
	assert.Equal(t, 40, cfg.Solver.MaxIterations)
	assert.Equal(t, 0.3, cfg.Solver.SurfacePressureMargin)
}

func TestParse_SteepHybridicityAccepted(t *testing.T) {
	src := strings.Replace(small, "[reference]", "[solver]\nHybridicity = -4\n[reference]", 1)
	cfg, err := Parse([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, -4.0, cfg.Solver.Hybridicity)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("testdata/missing.ini")
	var cfgErr *model.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "source", cfgErr.Field)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("[dimensions\nLevels = 3"))
	require.Error(t, err)
	assert.Equal(t, "ConfigError", model.Kind(err))
}
