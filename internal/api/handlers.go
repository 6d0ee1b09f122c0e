package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/GlucoRisk/internal/features"
	"github.com/Skufu/GlucoRisk/internal/history"
	"github.com/Skufu/GlucoRisk/internal/predictor"
	"github.com/Skufu/GlucoRisk/internal/risk"
)

// ResultView is the data rendered on the result page.
type ResultView struct {
	ID            string  `json:"id"`
	Probability   float64 `json:"probability"`
	Prediction    int     `json:"prediction"`
	Risk          string  `json:"risk"`
	RiskLevel     string  `json:"risk_level"`
	ResultText    string  `json:"result_text"`
	Mode          string  `json:"mode"`
	Source        string  `json:"source"`
	BMI           float64 `json:"bmi"`
	Glucose       float64 `json:"glucose"`
	Age           float64 `json:"age"`
	Insulin       float64 `json:"insulin"`
	Pregnancies   float64 `json:"pregnancies"`
	BloodPressure float64 `json:"blood_pressure"`
	SkinThickness float64 `json:"skin_thickness"`
	DPF           float64 `json:"dpf"`
}

func newResultView(f features.PatientFeatures, r predictor.Result) ResultView {
	return ResultView{
		ID:            r.ID.String(),
		Probability:   r.Probability,
		Prediction:    r.Prediction,
		Risk:          r.Tier.String(),
		RiskLevel:     r.Tier.Level(),
		ResultText:    r.ResultText,
		Mode:          string(r.Mode),
		Source:        string(r.Source),
		BMI:           f.BMI,
		Glucose:       f.Glucose,
		Age:           f.Age,
		Insulin:       f.Insulin,
		Pregnancies:   f.Pregnancies,
		BloodPressure: f.BloodPressure,
		SkinThickness: f.SkinThickness,
		DPF:           f.DPF,
	}
}

func (s *server) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "glucorisk",
		"next":    "/choice",
	})
}

func (s *server) choice(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":   c.Query("name"),
		"age":    c.Query("age"),
		"gender": c.Query("gender"),
		"modes":  []string{string(features.ModeQuick), string(features.ModeFull)},
	})
}

type formField struct {
	Param string `json:"param"`
	Label string `json:"label"`
}

var (
	quickFields = []formField{
		{features.ParamBMI, "BMI"},
		{features.ParamGlucose, "Glucose"},
		{features.ParamAge, "Age"},
	}
	fullFields = append(append([]formField{}, quickFields...),
		formField{features.ParamPregnancies, "Pregnancies"},
		formField{features.ParamBloodPressure, "Blood Pressure"},
		formField{features.ParamSkinThickness, "Skin Thickness"},
		formField{features.ParamInsulin, "Insulin"},
		formField{features.ParamDPF, "Diabetes Pedigree Function"},
	)
)

// form describes the inputs of the quick or full form; both submit to
// /predict.
func (s *server) form(mode features.Mode) gin.HandlerFunc {
	fields := quickFields
	if mode == features.ModeFull {
		fields = fullFields
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"mode":   mode,
			"action": "/predict",
			"fields": fields,
		})
	}
}

func (s *server) predictQuery(c *gin.Context) {
	f := features.FromQuery(c.Query)
	c.JSON(http.StatusOK, s.predict(c, f))
}

func (s *server) predictJSON(c *gin.Context) {
	var body map[string]any
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	c.JSON(http.StatusOK, s.predict(c, featuresFromJSON(body)))
}

func (s *server) predict(c *gin.Context, f features.PatientFeatures) ResultView {
	res := s.Predictor.Predict(c.Request.Context(), f)
	if err := s.Recorder.Record(c.Request.Context(), history.NewRecord(f, res)); err != nil {
		s.Logger.Warn("failed to record prediction",
			slog.String("id", res.ID.String()),
			slog.Any("error", err),
		)
	}
	return newResultView(f, res)
}

// featuresFromJSON applies the same parse-or-zero policy as the query form.
// Both the long field names and the form's short names are accepted.
func featuresFromJSON(body map[string]any) features.PatientFeatures {
	get := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := body[k]; ok && v != nil {
				return stringify(v)
			}
		}
		return ""
	}
	return features.PatientFeatures{
		BMI:           features.ParseFloat(get("bmi"), 0),
		Glucose:       features.ParseFloat(get("glucose"), 0),
		Age:           features.ParseFloat(get("age"), 0),
		Pregnancies:   features.ParseFloat(get("pregnancies", features.ParamPregnancies), 0),
		BloodPressure: features.ParseFloat(get("blood_pressure", features.ParamBloodPressure), 0),
		SkinThickness: features.ParseFloat(get("skin_thickness", features.ParamSkinThickness), 0),
		Insulin:       features.ParseFloat(get("insulin"), 0),
		DPF:           features.ParseFloat(get("dpf", "diabetes_pedigree_function"), 0),
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Values assumed for parameters the analysis page was opened without.
const (
	defaultProbability   = 50
	defaultBMI           = 25
	defaultGlucose       = 100
	defaultAge           = 40
	defaultInsulin       = 100
	defaultPregnancies   = 0
	defaultBloodPressure = 120
	defaultSkinThickness = 20
	defaultDPF           = 0.5
)

func (s *server) analysis(c *gin.Context) {
	probability := features.ParseFloat(c.Query("probability"), defaultProbability)
	tier := risk.Classify(probability)

	c.JSON(http.StatusOK, gin.H{
		"probability":    probability,
		"bmi":            features.ParseFloat(c.Query("bmi"), defaultBMI),
		"glucose":        features.ParseFloat(c.Query("glucose"), defaultGlucose),
		"age":            features.ParseFloat(c.Query("age"), defaultAge),
		"insulin":        features.ParseFloat(c.Query("insulin"), defaultInsulin),
		"pregnancies":    features.ParseFloat(c.Query("pregnancies"), defaultPregnancies),
		"blood_pressure": features.ParseFloat(c.Query("blood_pressure"), defaultBloodPressure),
		"skin_thickness": features.ParseFloat(c.Query("skin_thickness"), defaultSkinThickness),
		"dpf":            features.ParseFloat(c.Query("dpf"), defaultDPF),
		"risk_level":     tier.Level(),
		"risk_text":      tier.RiskText(),
	})
}

// result renders a result page from caller-supplied values. Labels the caller
// leaves out are derived from the probability.
func (s *server) result(c *gin.Context) {
	probability := features.ParseFloat(c.Query("probability"), 50)
	tier := risk.Classify(probability)

	riskName := strings.TrimSpace(c.Query("risk"))
	if riskName == "" {
		riskName = tier.String()
	}
	level := strings.TrimSpace(c.Query("risk_level"))
	if level == "" {
		if t, err := risk.TierFromString(riskName); err == nil {
			level = t.Level()
		} else {
			level = tier.Level()
		}
	}
	text := strings.TrimSpace(c.Query("result_text"))
	if text == "" {
		if t, err := risk.TierFromString(riskName); err == nil {
			text = t.ResultText()
		} else {
			text = tier.ResultText()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"probability": probability,
		"risk":        riskName,
		"risk_level":  level,
		"result_text": text,
	})
}

func (s *server) models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": s.Models.Describe()})
}

func (s *server) history(c *gin.Context) {
	if s.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	records, err := s.History.Recent(c.Request.Context(), history.ClampLimit(limit))
	if err != nil {
		s.Logger.Error("failed to load history", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": records})
}
