package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/growcalendar/grow-calendar/internal/engine"
)

// CalendarCrop is a visible crop with the guidance for its phase
type CalendarCrop struct {
	engine.CropProgress
	GuidancePhase engine.Phase          `json:"guidancePhase"`
	Guidance      *engine.PhaseGuidance `json:"guidance"`
	FrostAdvisory *engine.FrostAdvisory `json:"frostAdvisory"`
}

// Calendar is the combined weekly outlook and crop view for one ZIP code.
// Either half may be missing when its provider failed; Warnings says which.
type Calendar struct {
	Zip        string                `json:"zip"`
	State      string                `json:"state"`
	Month      string                `json:"month"`
	Weather    *engine.WeeklyWeather `json:"weather"`
	FrostAlert string                `json:"frostAlert,omitempty"`
	Crops      []CalendarCrop        `json:"crops"`
	Warnings   []string              `json:"warnings,omitempty"`
}

// Calendar fetches the forecast and the crop statistics concurrently and
// combines them. It fails only when both halves are unavailable.
func (s *Service) Calendar(ctx context.Context, zip string) (*Calendar, error) {
	loc, err := s.Resolve(ctx, zip)
	if err != nil {
		return nil, err
	}
	month := s.clock.Now().Month()

	var (
		wg                  sync.WaitGroup
		weekly              *engine.WeeklyWeather
		report              *CropProgressReport
		weatherErr, cropErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		weekly, weatherErr = s.weatherFor(ctx, loc)
	}()
	go func() {
		defer wg.Done()
		report, cropErr = s.cropProgressFor(ctx, loc)
	}()
	wg.Wait()

	if weatherErr != nil && cropErr != nil {
		return nil, fmt.Errorf("%w; %w", weatherErr, cropErr)
	}

	cal := &Calendar{
		Zip:     loc.Zip,
		State:   loc.State,
		Month:   month.String(),
		Weather: weekly,
		Crops:   []CalendarCrop{},
	}
	if weatherErr != nil {
		cal.Warnings = append(cal.Warnings, "weather forecast unavailable")
	}
	if cropErr != nil {
		cal.Warnings = append(cal.Warnings, "crop progress unavailable")
	}

	cal.FrostAlert = engine.FrostAlert(weekly)

	if report != nil {
		for _, p := range report.Results {
			if !engine.VisibleOnCalendar(p) {
				continue
			}
			phase, guidance := engine.GuidanceFor(p.Instructions, p.CurrentPhase)
			cal.Crops = append(cal.Crops, CalendarCrop{
				CropProgress:  p,
				GuidancePhase: phase,
				Guidance:      guidance,
				FrostAdvisory: engine.FrostAdvice(p, weekly, month),
			})
		}
	}

	return cal, nil
}
