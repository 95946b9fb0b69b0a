package main

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/itohio/goimp/pkg/impedance"
)

func formatHz(hz int) string {
	fract, suffix := humanize.ComputeSI(float64(hz))
	return fmt.Sprintf("%0.2f %sHz", fract, suffix)
}

func formatOhms(ohms float64) string {
	fract, suffix := humanize.ComputeSI(ohms)
	return fmt.Sprintf("%0.3f %sΩ", fract, suffix)
}

func (a *app) formatPhase(rad float64) string {
	if a.degrees {
		return fmt.Sprintf("%.2f°", impedance.Degrees(rad))
	}
	return fmt.Sprintf("%.4f rad", rad)
}
