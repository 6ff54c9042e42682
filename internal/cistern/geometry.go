package cistern

import (
	"fmt"
	"math"
)

// Shape names a tank geometry.
type Shape string

const (
	ShapeCylinder           Shape = "cylinder"            // upright round tank
	ShapeCuboid             Shape = "cuboid"              // rectangular tank or concrete pit
	ShapeHorizontalCylinder Shape = "horizontal-cylinder" // lying round tank
)

// Geometry describes the inside of the tank. All lengths are in metres.
type Geometry struct {
	Shape    Shape   `yaml:"shape"`
	Diameter float64 `yaml:"diameter"`
	Length   float64 `yaml:"length"`
	Width    float64 `yaml:"width"`
}

// Validate checks that the dimensions needed by the shape are positive.
func (g Geometry) Validate() error {
	switch g.Shape {
	case ShapeCylinder:
		if g.Diameter <= 0 {
			return fmt.Errorf("cylinder: diameter must be positive, got %v", g.Diameter)
		}
	case ShapeCuboid:
		if g.Length <= 0 || g.Width <= 0 {
			return fmt.Errorf("cuboid: length and width must be positive, got %v x %v", g.Length, g.Width)
		}
	case ShapeHorizontalCylinder:
		if g.Diameter <= 0 || g.Length <= 0 {
			return fmt.Errorf("horizontal-cylinder: diameter and length must be positive, got %v x %v", g.Diameter, g.Length)
		}
	default:
		return fmt.Errorf("unknown tank shape %q", g.Shape)
	}
	return nil
}

// VolumeAt returns the litres held when the water stands h metres above the
// tank floor.
func (g Geometry) VolumeAt(h float64) float64 {
	if h <= 0 {
		return 0
	}
	var m3 float64
	switch g.Shape {
	case ShapeCylinder:
		r := g.Diameter / 2
		m3 = math.Pi * r * r * h
	case ShapeCuboid:
		m3 = g.Length * g.Width * h
	case ShapeHorizontalCylinder:
		m3 = circularSegment(g.Diameter/2, h) * g.Length
	}
	return m3 * 1000
}

// circularSegment is the area of a circle of radius r below a chord at
// height h above the lowest point.
func circularSegment(r, h float64) float64 {
	if h >= 2*r {
		return math.Pi * r * r
	}
	d := r - h
	return r*r*math.Acos(d/r) - d*math.Sqrt(2*r*h-h*h)
}
