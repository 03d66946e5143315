package engine

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrEmptyForecast = errors.New("forecast has no periods")
	ErrUnknownPolicy = errors.New("unknown frost policy")
)

const (
	freezeThresholdF = 32.0
	frostThresholdF  = 36.0
)

// Classify maps a Fahrenheit temperature to a frost risk.
// NaN and infinities carry no risk.
func Classify(tempF float64) FrostRisk {
	if math.IsNaN(tempF) || math.IsInf(tempF, 0) {
		return FrostRisk{}
	}

	switch {
	case tempF <= freezeThresholdF:
		return FrostRisk{Risk: true, Type: FrostFreeze}
	case tempF <= frostThresholdF:
		return FrostRisk{Risk: true, Type: FrostFrost}
	default:
		return FrostRisk{}
	}
}

// ClassifyPeriod classifies a period's temperature after converting it to
// Fahrenheit. Periods without a numeric temperature carry no risk.
func ClassifyPeriod(p ForecastPeriod) FrostRisk {
	tempF, ok := periodFahrenheit(p)
	if !ok {
		return FrostRisk{}
	}
	return Classify(tempF)
}

// ParseTemperature extracts the numeric part of a provider temperature such
// as "30", "30°F" or " 28 F ".
func ParseTemperature(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, "FfCc ")
	s = strings.TrimSuffix(s, "°")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ToFahrenheit converts a value in the given unit. Anything other than
// Celsius is taken to be Fahrenheit already.
func ToFahrenheit(v float64, unit string) float64 {
	switch strings.ToUpper(strings.TrimSpace(unit)) {
	case "C", "°C", "WMOUNIT:DEGC":
		return v*9/5 + 32
	default:
		return v
	}
}

func periodFahrenheit(p ForecastPeriod) (float64, bool) {
	if p.TemperatureValue == nil {
		return 0, false
	}
	v := *p.TemperatureValue
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return ToFahrenheit(v, p.TemperatureUnit), true
}

// Normalize annotates each forecast period with its frost risk and derives
// the week-level summary. periods[0] is taken as the current period.
func Normalize(location string, periods []ForecastPeriod, policy FrostPolicy) (*WeeklyWeather, error) {
	if len(periods) == 0 {
		return nil, ErrEmptyForecast
	}
	if policy == "" {
		policy = PolicyWeekMinimum
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}

	annotated := make([]AnnotatedPeriod, 0, len(periods))
	var minTemp *float64
	for _, p := range periods {
		risk := ClassifyPeriod(p)
		annotated = append(annotated, AnnotatedPeriod{
			ForecastPeriod: p,
			FrostRisk:      risk.Risk,
			FrostType:      risk.Type,
		})

		if tempF, ok := periodFahrenheit(p); ok {
			if minTemp == nil || tempF < *minTemp {
				v := tempF
				minTemp = &v
			}
		}
	}

	weekly := &WeeklyWeather{
		Location:       location,
		Current:        annotated[0],
		Periods:        annotated,
		MinTemperature: minTemp,
	}

	var overall FrostRisk
	switch policy {
	case PolicyCurrent:
		overall = FrostRisk{Risk: weekly.Current.FrostRisk, Type: weekly.Current.FrostType}
	case PolicyWeekMinimum:
		if minTemp != nil {
			overall = Classify(*minTemp)
		}
	}
	weekly.OverallFrostRisk = overall.Risk
	weekly.OverallFrostType = overall.Type

	return weekly, nil
}

// Valid reports whether p is a known policy
func (p FrostPolicy) Valid() bool {
	return p == PolicyWeekMinimum || p == PolicyCurrent
}

// ParseFrostPolicy accepts the configuration spelling of a policy
func ParseFrostPolicy(s string) (FrostPolicy, error) {
	p := FrostPolicy(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PolicyWeekMinimum, nil
	}
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
	return p, nil
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
