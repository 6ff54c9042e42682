package cistern

import (
	"errors"
	"fmt"
	"time"
)

// Calibration maps raw distance samples to a fill level. Heights are in
// metres above the tank floor.
type Calibration struct {
	// SensorHeight is where the sensor face sits.
	SensorHeight float64 `yaml:"sensor_height"`
	// EmptyHeight is the lowest usable level (pump intake).
	EmptyHeight float64 `yaml:"empty_height"`
	// FullHeight is the overflow level.
	FullHeight float64 `yaml:"full_height"`

	Tank Geometry `yaml:"tank"`
}

// DefaultCalibration describes a 2 m upright concrete cistern.
func DefaultCalibration() Calibration {
	return Calibration{
		SensorHeight: 2.0,
		EmptyHeight:  0.15,
		FullHeight:   1.8,
		Tank: Geometry{
			Shape:    ShapeCylinder,
			Diameter: 2.0,
		},
	}
}

// Validate checks the reference heights and the tank geometry.
func (c Calibration) Validate() error {
	if c.EmptyHeight < 0 {
		return errors.New("empty_height must not be negative")
	}
	if c.FullHeight <= c.EmptyHeight {
		return fmt.Errorf("full_height (%v) must be above empty_height (%v)", c.FullHeight, c.EmptyHeight)
	}
	if c.SensorHeight < c.FullHeight {
		return fmt.Errorf("sensor_height (%v) must not be below full_height (%v)", c.SensorHeight, c.FullHeight)
	}
	if err := c.Tank.Validate(); err != nil {
		return fmt.Errorf("tank: %w", err)
	}
	return nil
}

// Height converts a raw distance in millimetres into the water height,
// clamped to the physical range of the tank.
func (c Calibration) Height(raw uint16) float64 {
	return clamp(c.SensorHeight-float64(raw)/1000, 0, c.FullHeight)
}

// Percentage is the usable fill fraction in [0, 1].
func (c Calibration) Percentage(height float64) float64 {
	return clamp((height-c.EmptyHeight)/(c.FullHeight-c.EmptyHeight), 0, 1)
}

// Volume is the usable water in litres, i.e. above the empty level.
func (c Calibration) Volume(height float64) float64 {
	v := c.Tank.VolumeAt(height) - c.Tank.VolumeAt(c.EmptyHeight)
	if v < 0 {
		return 0
	}
	return v
}

// Capacity is the usable volume of a full tank in litres.
func (c Calibration) Capacity() float64 {
	return c.Volume(c.FullHeight)
}

// Convert turns one raw sample into a Snapshot taken at t.
func (c Calibration) Convert(raw uint16, t time.Time) Snapshot {
	h := c.Height(raw)
	return Snapshot{
		Height:     h,
		Percentage: c.Percentage(h),
		Volume:     c.Volume(h),
		Raw:        raw,
		Time:       t,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
