package model

// 垂直域配置, ordered bottom to top. The topmost domain's TopAltitude and
// TopThickness are derived from the top pressure, never read.
type DomainSpec struct {
	Name         string  `json:"name" yaml:"name"`
	Levels       int     `json:"levels" yaml:"levels"`
	TopAltitude  float64 `json:"top_altitude" yaml:"top_altitude"`   // m
	TopThickness float64 `json:"top_thickness" yaml:"top_thickness"` // m
}

// 参考大气锚点
type ReferenceParams struct {
	TopPressure       float64 `json:"top_pressure" yaml:"top_pressure"`             // ZP1, Pa
	SurfacePressure   float64 `json:"surface_pressure" yaml:"surface_pressure"`     // Pa
	ReferencePressure float64 `json:"reference_pressure" yaml:"reference_pressure"` // Pa at ReferenceAltitude, 0 = ICAO surface temperature
	ReferenceAltitude float64 `json:"reference_altitude" yaml:"reference_altitude"` // m
	BottomPressure    float64 `json:"bottom_pressure" yaml:"bottom_pressure"`       // Pa at the lowest full level, 0 = derived
	BottomAltitude    float64 `json:"bottom_altitude" yaml:"bottom_altitude"`       // m, lowest full level
}

// MinSurfacePressureMargin is the smallest relative surface pressure
// perturbation a table is verified against.
const MinSurfacePressureMargin = 0.2

// 求解参数
type SolverParams struct {
	Hybridicity           float64 `json:"hybridicity" yaml:"hybridicity"` // ZALPH, <= -1
	ArithmeticMean        bool    `json:"arithmetic_mean" yaml:"arithmetic_mean"`
	PressureLevels        int     `json:"pressure_levels" yaml:"pressure_levels"`
	SigmaLevels           int     `json:"sigma_levels" yaml:"sigma_levels"`
	Tolerance             float64 `json:"tolerance" yaml:"tolerance"` // m
	MaxIterations         int     `json:"max_iterations" yaml:"max_iterations"`
	Relaxation            float64 `json:"relaxation" yaml:"relaxation"`
	SurfacePressureMargin float64 `json:"surface_pressure_margin" yaml:"surface_pressure_margin"`
}

// Levels is the coefficient table: JPN+1 half-levels, index 0 at the top,
// index JPN at the surface.
type Levels struct {
	A []float64 `json:"a"` // Pa
	B []float64 `json:"b"`
}

func NewLevels(n int) *Levels {
	return &Levels{
		A: make([]float64, n+1),
		B: make([]float64, n+1),
	}
}

// 层数
func (l *Levels) Len() int {
	return len(l.A) - 1
}

// 半层气压
func (l *Levels) HalfPressure(k int, ps float64) float64 {
	return l.A[k] + l.B[k]*ps
}

func (l *Levels) Copy() *Levels {
	c := NewLevels(l.Len())
	copy(c.A, l.A)
	copy(c.B, l.B)
	return c
}

// 廓线, evaluated at one surface pressure. Half-level slices have JPN+1
// entries, full-level slices JPN; full level k lies between half-levels k and k+1.
type Profile struct {
	SurfacePressure   float64   `json:"surface_pressure"`
	HalfPressure      []float64 `json:"half_pressure"`
	FullPressure      []float64 `json:"full_pressure"`
	HalfAltitude      []float64 `json:"half_altitude"`
	FullAltitude      []float64 `json:"full_altitude"`
	Thickness         []float64 `json:"thickness"`          // m
	PressureThickness []float64 `json:"pressure_thickness"` // Pa
}

// 前后端通信消息结构
type Msg struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
}

const (
	MsgBuild  = "build"
	MsgResult = "result"
	MsgReport = "report"
	MsgError  = "error"
)
