package config

import (
	"fmt"
	"math"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"mkvert/model"
	"mkvert/partition"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

type Export struct {
	Format string `json:"format" yaml:"format"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Config 一次垂直坐标构建的全部输入，读入后不再修改
type Config struct {
	Source    string                `json:"source,omitempty" yaml:"source,omitempty"`
	Levels    int                   `json:"levels" yaml:"levels"`
	Domains   []model.DomainSpec    `json:"domains" yaml:"domains"`
	Reference model.ReferenceParams `json:"reference" yaml:"reference"`
	Solver    model.SolverParams    `json:"solver" yaml:"solver"`
	Export    Export                `json:"export" yaml:"export"`
}

// LoadFile reads and validates an ini file.
func LoadFile(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, model.NewConfigError("source", "cannot read %s: %v", path, err)
	}
	cfg, err := parse(file)
	if err != nil {
		return nil, err
	}
	cfg.Source = path
	return cfg, nil
}

// Parse reads and validates ini text, as received over the websocket.
func Parse(data []byte) (*Config, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, model.NewConfigError("source", "malformed ini: %v", err)
	}
	return parse(file)
}

func parse(file *ini.File) (*Config, error) {
	dims := file.Section("dimensions")
	ref := file.Section("reference")
	sol := file.Section("solver")
	exp := file.Section("export")

	var err error
	cfg := &Config{}
	if cfg.Levels, err = requireInt(dims, "Levels"); err != nil {
		return nil, err
	}
	if cfg.Solver.PressureLevels, err = requireInt(dims, "PressureLevels"); err != nil {
		return nil, err
	}
	if cfg.Solver.SigmaLevels, err = requireInt(dims, "SigmaLevels"); err != nil {
		return nil, err
	}
	ndom, err := requireInt(dims, "Domains")
	if err != nil {
		return nil, err
	}

	// a key that is present must parse, defaults only fill absent keys
	o := &optional{}
	cfg.Reference = model.ReferenceParams{
		TopPressure:       o.float(ref, "TopPressure", 1000),
		SurfacePressure:   o.float(ref, "SurfacePressure", 101325),
		ReferencePressure: o.float(ref, "ReferencePressure", 0),
		ReferenceAltitude: o.float(ref, "ReferenceAltitude", 200),
		BottomPressure:    o.float(ref, "BottomPressure", 0),
		BottomAltitude:    o.float(ref, "BottomAltitude", 0),
	}
	cfg.Solver.Hybridicity = o.float(sol, "Hybridicity", -1.6)
	cfg.Solver.ArithmeticMean = o.bool(sol, "ArithmeticMean", true)
	cfg.Solver.Tolerance = o.float(sol, "Tolerance", 1e-4)
	cfg.Solver.MaxIterations = o.int(sol, "MaxIterations", 100)
	cfg.Solver.Relaxation = o.float(sol, "Relaxation", 0.8)
	cfg.Solver.SurfacePressureMargin = o.float(sol, "SurfacePressureMargin", model.MinSurfacePressureMargin)
	cfg.Export = Export{
		Format: exp.Key("Format").MustString(FormatJSON),
		Path:   exp.Key("Path").String(),
	}
	if o.err != nil {
		return nil, o.err
	}

	if cfg.Domains, err = parseDomains(file, ndom); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDomains(file *ini.File, n int) ([]model.DomainSpec, error) {
	if n < 1 {
		return nil, model.NewConfigError("dimensions.Domains", "must be positive, got %d", n)
	}
	for i := 1; i <= n; i++ {
		if name := "domain." + strconv.Itoa(i); !file.HasSection(name) {
			return nil, model.NewConfigError(name, "section missing, %d domains declared", n)
		}
	}
	if extra := "domain." + strconv.Itoa(n+1); file.HasSection(extra) {
		return nil, model.NewConfigError(extra, "more domain sections than the %d declared", n)
	}

	domains := make([]model.DomainSpec, 0, n)
	for i := 1; i <= n; i++ {
		name := "domain." + strconv.Itoa(i)
		sec := file.Section(name)
		d := model.DomainSpec{Name: sec.Key("Name").MustString(name)}
		var err error
		if d.Levels, err = requireInt(sec, "Levels"); err != nil {
			return nil, err
		}
		if i < n {
			if d.TopAltitude, err = requireFloat(sec, "TopAltitude"); err != nil {
				return nil, err
			}
			if d.TopThickness, err = requireFloat(sec, "TopThickness"); err != nil {
				return nil, err
			}
		} else if sec.HasKey("TopAltitude") || sec.HasKey("TopThickness") {
			log.WithFields(log.Fields{
				"domain": name,
			}).Warn("top of the last domain is set by TopPressure, configured values ignored")
		}
		domains = append(domains, d)
	}
	return domains, nil
}

// Validate checks the cross-field constraints.
func (c *Config) Validate() error {
	if c.Levels < 1 {
		return model.NewConfigError("dimensions.Levels", "must be positive, got %d", c.Levels)
	}
	s := c.Solver
	if s.PressureLevels < 1 {
		return model.NewConfigError("dimensions.PressureLevels", "must be positive, got %d", s.PressureLevels)
	}
	if s.SigmaLevels < 1 {
		return model.NewConfigError("dimensions.SigmaLevels", "must be positive, got %d", s.SigmaLevels)
	}
	if s.PressureLevels+s.SigmaLevels >= c.Levels {
		return model.NewConfigError("dimensions.Levels",
			"must exceed PressureLevels+SigmaLevels=%d, got %d", s.PressureLevels+s.SigmaLevels, c.Levels)
	}
	if s.Hybridicity > -1 {
		return model.NewConfigError("solver.Hybridicity", "must be <= -1, got %g", s.Hybridicity)
	}
	if s.Hybridicity < -3 {
		log.WithFields(log.Fields{
			"hybridicity": s.Hybridicity,
		}).Warn("hybridicity outside the usual [-3, -1] range")
	}
	if s.Tolerance <= 0 {
		return model.NewConfigError("solver.Tolerance", "must be positive, got %g", s.Tolerance)
	}
	if s.MaxIterations < 1 {
		return model.NewConfigError("solver.MaxIterations", "must be positive, got %d", s.MaxIterations)
	}
	if s.Relaxation <= 0 || s.Relaxation > 1 {
		return model.NewConfigError("solver.Relaxation", "must lie in (0, 1], got %g", s.Relaxation)
	}
	if s.SurfacePressureMargin < model.MinSurfacePressureMargin || s.SurfacePressureMargin >= 1 {
		return model.NewConfigError("solver.SurfacePressureMargin",
			"must lie in [%g, 1), got %g", model.MinSurfacePressureMargin, s.SurfacePressureMargin)
	}

	r := c.Reference
	if r.SurfacePressure <= 0 {
		return model.NewConfigError("reference.SurfacePressure", "must be positive, got %g", r.SurfacePressure)
	}
	if r.TopPressure <= 0 || r.TopPressure >= r.SurfacePressure {
		return model.NewConfigError("reference.TopPressure", "must lie in (0, %g), got %g", r.SurfacePressure, r.TopPressure)
	}
	if r.BottomAltitude < 0 {
		return model.NewConfigError("reference.BottomAltitude", "must be positive, got %g", r.BottomAltitude)
	}
	if r.BottomPressure < 0 {
		return model.NewConfigError("reference.BottomPressure", "must be positive, got %g", r.BottomPressure)
	}
	if r.BottomAltitude == 0 && r.BottomPressure == 0 {
		return model.NewConfigError("reference.BottomAltitude", "one of BottomAltitude or BottomPressure is required")
	}

	if c.Export.Format != FormatJSON && c.Export.Format != FormatYAML {
		return model.NewConfigError("export.Format", "unknown format %q", c.Export.Format)
	}
	return partition.Validate(c.Domains, c.Levels, math.Inf(1))
}

func requireInt(sec *ini.Section, key string) (int, error) {
	if !sec.HasKey(key) {
		return 0, model.NewConfigError(field(sec, key), "required")
	}
	v, err := sec.Key(key).Int()
	if err != nil {
		return 0, model.NewConfigError(field(sec, key), "not an integer: %q", sec.Key(key).String())
	}
	return v, nil
}

func requireFloat(sec *ini.Section, key string) (float64, error) {
	if !sec.HasKey(key) {
		return 0, model.NewConfigError(field(sec, key), "required")
	}
	v, err := sec.Key(key).Float64()
	if err != nil {
		return 0, model.NewConfigError(field(sec, key), "not a number: %q", sec.Key(key).String())
	}
	return v, nil
}

func field(sec *ini.Section, key string) string {
	return fmt.Sprintf("%s.%s", sec.Name(), key)
}

// optional reads keys that have a default. The first malformed value is kept
// in err and later reads are skipped.
type optional struct {
	err error
}

func (o *optional) float(sec *ini.Section, key string, def float64) float64 {
	if o.err != nil || !sec.HasKey(key) {
		return def
	}
	v, err := requireFloat(sec, key)
	o.err = err
	return v
}

func (o *optional) int(sec *ini.Section, key string, def int) int {
	if o.err != nil || !sec.HasKey(key) {
		return def
	}
	v, err := requireInt(sec, key)
	o.err = err
	return v
}

func (o *optional) bool(sec *ini.Section, key string, def bool) bool {
	if o.err != nil || !sec.HasKey(key) {
		return def
	}
	v, err := sec.Key(key).Bool()
	if err != nil {
		o.err = model.NewConfigError(field(sec, key), "not a boolean: %q", sec.Key(key).String())
	}
	return v
}
