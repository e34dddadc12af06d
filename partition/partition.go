package partition

import (
	"math"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"mkvert/model"
)

const (
	maxBisect = 200
	maxExpand = 64
)

// Partition holds the target half-level altitudes of the whole column,
// ordered bottom to top: Altitudes[0] is the surface, Altitudes[n] the top.
// Boundaries[i] is the index in Altitudes of the top of domain i.
type Partition struct {
	Altitudes   []float64          `json:"altitudes"`
	Thicknesses []float64          `json:"thicknesses"`
	Boundaries  []int              `json:"boundaries"`
	Domains     []model.DomainSpec `json:"domains"`
}

// Levels is the number of layers covered.
func (p *Partition) Levels() int {
	return len(p.Thicknesses)
}

// Validate checks the declared domains against the requested number of
// layers and the column top. The top values of the last domain are ignored.
func Validate(domains []model.DomainSpec, levels int, top float64) error {
	if levels <= 0 {
		return model.NewConfigError("dimensions.Levels", "must be positive, got %d", levels)
	}
	if len(domains) == 0 {
		return model.NewConfigError("dimensions.Domains", "at least one domain is required")
	}
	sum := 0
	prev := 0.0
	for i, d := range domains {
		if d.Levels <= 0 {
			return model.NewConfigError(domainField(i, "Levels"), "must be positive, got %d", d.Levels)
		}
		sum += d.Levels
		if i == len(domains)-1 {
			continue
		}
		if d.TopAltitude <= prev {
			return model.NewConfigError(domainField(i, "TopAltitude"),
				"%g m is not above the domain below (%g m)", d.TopAltitude, prev)
		}
		if d.TopThickness <= 0 {
			return model.NewConfigError(domainField(i, "TopThickness"), "must be positive, got %g", d.TopThickness)
		}
		prev = d.TopAltitude
	}
	if sum != levels {
		return model.NewConfigError("dimensions.Levels",
			"domain layer counts sum to %d, expected %d", sum, levels)
	}
	if top <= prev {
		return model.NewConfigError(domainField(len(domains)-1, "TopAltitude"),
			"column top %g m is not above the domain below (%g m)", top, prev)
	}
	return nil
}

// Build subdivides every domain among its layers. bottomThickness is the
// thickness of the lowest layer, top the altitude of the column top.
func Build(domains []model.DomainSpec, levels int, bottomThickness, top float64) (*Partition, error) {
	if err := Validate(domains, levels, top); err != nil {
		return nil, err
	}
	if bottomThickness <= 0 {
		return nil, model.NewConfigError("reference.BottomAltitude", "bottom layer thickness must be positive, got %g", bottomThickness)
	}

	p := &Partition{
		Altitudes:   make([]float64, 0, levels+1),
		Thicknesses: make([]float64, 0, levels),
		Boundaries:  make([]int, len(domains)),
		Domains:     make([]model.DomainSpec, len(domains)),
	}
	copy(p.Domains, domains)
	p.Altitudes = append(p.Altitudes, 0)

	zBottom, hBottom := 0.0, bottomThickness
	for i, d := range domains {
		var h []float64
		if i == len(domains)-1 {
			h = geometric(top-zBottom, d.Levels, hBottom)
			p.Domains[i].TopAltitude = top
			p.Domains[i].TopThickness = h[len(h)-1]
		} else {
			h = progression(d.TopAltitude-zBottom, d.Levels, hBottom, d.TopThickness)
		}

		zTop := p.Domains[i].TopAltitude
		z := zBottom
		for j, dz := range h {
			z += dz
			if j == len(h)-1 {
				z = zTop
			}
			p.Altitudes = append(p.Altitudes, z)
		}
		p.Thicknesses = append(p.Thicknesses, h...)
		p.Boundaries[i] = len(p.Altitudes) - 1

		log.WithFields(log.Fields{
			"domain":       d.Name,
			"levels":       d.Levels,
			"bottom":       zBottom,
			"top":          zTop,
			"thicknessBot": h[0],
			"thicknessTop": h[len(h)-1],
		}).Debug("domain partitioned")

		zBottom, hBottom = zTop, h[len(h)-1]
	}
	return p, nil
}

// progression spreads span over n layers from hb at the bottom to ht at the
// top: log h_j = log hb + t_j log(ht/hb) + gamma t_j (1-t_j).
func progression(span float64, n int, hb, ht float64) []float64 {
	if n == 1 {
		return []float64{span}
	}
	t := make([]float64, n)
	floats.Span(t, 0, 1)
	base := make([]float64, n)
	for j := range base {
		base[j] = hb * math.Pow(ht/hb, t[j])
	}
	if n == 2 || span <= hb+ht {
		return scaled(base, span)
	}

	h := make([]float64, n)
	sum := func(gamma float64) float64 {
		for j := range h {
			h[j] = base[j] * math.Exp(gamma*t[j]*(1-t[j]))
		}
		return floats.Sum(h)
	}
	lo, hi := -1.0, 1.0
	for i := 0; i < maxExpand && sum(lo) > span; i++ {
		lo *= 2
	}
	for i := 0; i < maxExpand && sum(hi) < span; i++ {
		hi *= 2
	}
	gamma := bisect(sum, lo, hi, span)
	sum(gamma)
	return scaled(h, span)
}

// geometric spreads span over n layers as h_j = hb q^j.
func geometric(span float64, n int, hb float64) []float64 {
	if n == 1 {
		return []float64{span}
	}
	h := make([]float64, n)
	sum := func(q float64) float64 {
		for j := range h {
			h[j] = hb * math.Pow(q, float64(j))
		}
		return floats.Sum(h)
	}
	var lo, hi float64
	switch {
	case span <= hb:
		sum(1)
		return scaled(h, span)
	case sum(1) < span:
		lo, hi = 1, 2
		for i := 0; i < maxExpand && sum(hi) < span; i++ {
			hi *= 2
		}
	default:
		lo, hi = 0, 1
	}
	q := bisect(sum, lo, hi, span)
	sum(q)
	return scaled(h, span)
}

// bisect finds x in [lo, hi] with f(x) = target for an increasing f.
func bisect(f func(float64) float64, lo, hi, target float64) float64 {
	for i := 0; i < maxBisect; i++ {
		mid := 0.5 * (lo + hi)
		v := f(mid)
		if math.Abs(v-target) <= 1e-12*target {
			return mid
		}
		if v < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

func scaled(h []float64, span float64) []float64 {
	out := make([]float64, len(h))
	copy(out, h)
	floats.Scale(span/floats.Sum(out), out)
	return out
}

func domainField(i int, key string) string {
	return "domain." + strconv.Itoa(i+1) + "." + key
}
