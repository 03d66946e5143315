package engine

import (
	"bytes"
	"encoding/json"
)

// ForecastPeriod is one named forecast period as reported by the weather provider
type ForecastPeriod struct {
	Name             string   `json:"name"`
	TemperatureValue *float64 `json:"temperatureValue"` // nil when the provider value was unparseable
	TemperatureUnit  string   `json:"temperatureUnit"`  // "F" or "C"
	ShortCondition   string   `json:"shortCondition"`
	LongDetails      string   `json:"longDetails"`
}

// AnnotatedPeriod is a ForecastPeriod with its frost classification attached
type AnnotatedPeriod struct {
	ForecastPeriod
	FrostRisk bool      `json:"frostRisk"`
	FrostType FrostType `json:"frostType"`
}

// WeeklyWeather is the normalized forecast for one location
type WeeklyWeather struct {
	Location         string            `json:"location"`
	Current          AnnotatedPeriod   `json:"current"`
	Periods          []AnnotatedPeriod `json:"periods"`
	OverallFrostRisk bool              `json:"overallFrostRisk"`
	OverallFrostType FrostType         `json:"overallFrostType"`
	MinTemperature   *float64          `json:"minTemperature"` // Fahrenheit
}

// FrostType is the severity of a frost risk. The zero value means no risk
// and is encoded as JSON null.
type FrostType string

const (
	FrostNone   FrostType = ""
	FrostFrost  FrostType = "frost"
	FrostFreeze FrostType = "freeze"
)

func (t FrostType) MarshalJSON() ([]byte, error) {
	if t == FrostNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

func (t *FrostType) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = FrostNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = FrostType(s)
	return nil
}

// FrostRisk is the classifier output for a single temperature
type FrostRisk struct {
	Risk bool
	Type FrostType
}

// FrostPolicy selects how the week-level frost flag is derived
type FrostPolicy string

const (
	PolicyWeekMinimum FrostPolicy = "week_minimum" // classify the lowest temperature of the week
	PolicyCurrent     FrostPolicy = "current"      // classify the current period only
)

// Phase is a crop's current cultivation stage
type Phase string

const (
	PhaseSowed        Phase = "sowed"
	PhaseTransplanted Phase = "transplanted"
	PhaseHarvested    Phase = "harvested"
	PhaseDormant      Phase = "dormant"
	PhaseCantSowYet   Phase = "cant_sow_yet" // outside every window and not perennial
)

// WindowKind names a seasonal window in a crop's instruction record
type WindowKind string

const (
	WindowSowing        WindowKind = "sowing"
	WindowTransplanting WindowKind = "transplanting"
	WindowHarvesting    WindowKind = "harvesting"
)

// windowOrder is the priority used when windows overlap
var windowOrder = []WindowKind{WindowSowing, WindowTransplanting, WindowHarvesting}

// windowPhase maps each window onto the phase it reports
var windowPhase = map[WindowKind]Phase{
	WindowSowing:        PhaseSowed,
	WindowTransplanting: PhaseTransplanted,
	WindowHarvesting:    PhaseHarvested,
}

// MonthToken is a free-form month entry from a catalog file. JSON numbers and
// strings are both accepted and kept as text.
type MonthToken string

func (m *MonthToken) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = MonthToken(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*m = MonthToken(n.String())
	return nil
}

// UnmarshalText lets TOML catalogs use plain strings
func (m *MonthToken) UnmarshalText(text []byte) error {
	*m = MonthToken(text)
	return nil
}

// SoilTemp is the preferred soil temperature range in Fahrenheit
type SoilTemp struct {
	Min float64 `json:"min,omitempty" toml:"min"`
	Max float64 `json:"max,omitempty" toml:"max"`
}

// CropCharacteristics is read-only reference data about a crop
type CropCharacteristics struct {
	Perennial        bool     `json:"perennial" toml:"perennial"`
	FrostTolerant    bool     `json:"frostTolerant" toml:"frostTolerant"`
	HeatTolerant     bool     `json:"heatTolerant,omitempty" toml:"heatTolerant"`
	HeatSensitive    bool     `json:"heatSensitive,omitempty" toml:"heatSensitive"`
	DroughtTolerant  bool     `json:"droughtTolerant,omitempty" toml:"droughtTolerant"`
	DroughtSensitive bool     `json:"droughtSensitive,omitempty" toml:"droughtSensitive"`
	PartialShadeOk   bool     `json:"partialShadeOk,omitempty" toml:"partialShadeOk"`
	DaysToMaturity   string   `json:"daysToMaturity,omitempty" toml:"daysToMaturity"`
	MaturityNotes    string   `json:"maturityNotes,omitempty" toml:"maturityNotes"`
	SunRequirement   string   `json:"sunRequirement,omitempty" toml:"sunRequirement"`
	SoilTemp         SoilTemp `json:"soilTemp,omitempty" toml:"soilTemp"`
	Companions       []string `json:"companions,omitempty" toml:"companions"`
	Family           string   `json:"family,omitempty" toml:"family"`
}

// PhaseGuidance is the human-readable advice for one phase
type PhaseGuidance struct {
	Description string   `json:"description" toml:"description"`
	Steps       []string `json:"steps" toml:"steps"`
}

// CropInstruction is a catalog entry. Windows holds the raw month tokens keyed
// by window name as loaded; Growing is the parsed form and is filled by Prepare.
// PerPhaseGuidance is keyed by Phase value ("sowed", "transplanted", ...).
type CropInstruction struct {
	Characteristics  CropCharacteristics      `json:"characteristics" toml:"characteristics"`
	Windows          map[string][]MonthToken  `json:"growingWindows" toml:"growingWindows"`
	PerPhaseGuidance map[string]PhaseGuidance `json:"perPhaseGuidance" toml:"perPhaseGuidance"`
	Growing          GrowingWindow            `json:"-" toml:"-"`
}

// Prepare parses the raw window tokens into Growing. Catalog loaders call it
// once before the instruction is shared.
func (c *CropInstruction) Prepare() {
	c.Growing = ParseGrowingWindow(c.Windows)
}

// Catalog maps lower-case crop identifiers to instructions. It is built once
// at startup and must not be mutated afterwards.
type Catalog map[string]*CropInstruction

// CropRecord is one raw statistic row from the agricultural statistics provider
type CropRecord struct {
	CommodityName     string `json:"commodity_desc"`
	StatisticCategory string `json:"statisticcat_desc"`
	Value             string `json:"value"`
	Unit              string `json:"unit_desc"`
	Year              int    `json:"year"`
}

// Statistic is a CropRecord as reported under its crop group
type Statistic struct {
	Stat  string `json:"stat"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
	Year  int    `json:"year"`
}

// CropProgress is the grouped, phase-resolved view of one commodity
type CropProgress struct {
	Name             string           `json:"name"`
	CurrentPhase     Phase            `json:"currentPhase"`
	PhaseExplanation string           `json:"phaseExplanation"`
	Statistics       []Statistic      `json:"statistics"`
	Instructions     *CropInstruction `json:"instructions"`
}

// PhaseResult is the output of ResolvePhase
type PhaseResult struct {
	Phase       Phase
	Explanation string
}

// FrostAdvisory is the per-crop frost warning shown on the calendar
type FrostAdvisory struct {
	PeriodName string    `json:"periodName"`
	FrostType  FrostType `json:"frostType"`
	Message    string    `json:"message"`
}
