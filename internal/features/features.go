// Package features holds the patient inputs fed to the diabetes risk models.
package features

import (
	"math"
	"strconv"
	"strings"
)

// Mode selects which model and heuristic evaluate a patient.
type Mode string

const (
	ModeQuick Mode = "quick"
	ModeFull  Mode = "full"
)

// Width is the length of the feature vector the mode's model expects.
func (m Mode) Width() int {
	if m == ModeFull {
		return 8
	}
	return 3
}

// PatientFeatures are the biometric inputs collected by the form flow.
// Quick mode reads BMI, Glucose and Age only.
type PatientFeatures struct {
	BMI           float64 `json:"bmi"`
	Glucose       float64 `json:"glucose"`
	Age           float64 `json:"age"`
	Pregnancies   float64 `json:"pregnancies"`
	BloodPressure float64 `json:"blood_pressure"`
	SkinThickness float64 `json:"skin_thickness"`
	Insulin       float64 `json:"insulin"`
	DPF           float64 `json:"dpf"`
}

// Mode reports ModeFull when any extended field is positive. A field that was
// left out and a field entered as zero are indistinguishable here.
func (f PatientFeatures) Mode() Mode {
	if f.Pregnancies > 0 || f.BloodPressure > 0 || f.SkinThickness > 0 || f.Insulin > 0 || f.DPF > 0 {
		return ModeFull
	}
	return ModeQuick
}

// QuickVector returns [bmi, glucose, age].
func (f PatientFeatures) QuickVector() []float64 {
	return []float64{f.BMI, f.Glucose, f.Age}
}

// FullVector returns the eight features in the order the full model was
// trained on.
func (f PatientFeatures) FullVector() []float64 {
	return []float64{
		f.Pregnancies,
		f.Glucose,
		f.BloodPressure,
		f.SkinThickness,
		f.Insulin,
		f.BMI,
		f.DPF,
		f.Age,
	}
}

// Vector returns the feature vector for the given mode.
func (f PatientFeatures) Vector(m Mode) []float64 {
	if m == ModeFull {
		return f.FullVector()
	}
	return f.QuickVector()
}

// ParseFloat converts raw to a float, returning def for empty or unparsable
// input.
func ParseFloat(raw string, def float64) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

// Query parameter names used by the quick and full input forms.
const (
	ParamBMI           = "bmi"
	ParamGlucose       = "glucose"
	ParamAge           = "age"
	ParamPregnancies   = "preg"
	ParamBloodPressure = "bp"
	ParamSkinThickness = "skin"
	ParamInsulin       = "insulin"
	ParamDPF           = "dpf"
)

// FromQuery builds features from form parameters, defaulting every missing or
// malformed value to zero.
func FromQuery(get func(string) string) PatientFeatures {
	return PatientFeatures{
		BMI:           ParseFloat(get(ParamBMI), 0),
		Glucose:       ParseFloat(get(ParamGlucose), 0),
		Age:           ParseFloat(get(ParamAge), 0),
		Pregnancies:   ParseFloat(get(ParamPregnancies), 0),
		BloodPressure: ParseFloat(get(ParamBloodPressure), 0),
		SkinThickness: ParseFloat(get(ParamSkinThickness), 0),
		Insulin:       ParseFloat(get(ParamInsulin), 0),
		DPF:           ParseFloat(get(ParamDPF), 0),
	}
}
