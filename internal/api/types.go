package api

import (
	"fmt"
	"strings"
	"time"

	"example.com/laborsched/internal/domain"
	"example.com/laborsched/internal/timegrid"
)

// ActivityRequest is the payload for POST and PUT on /api/actividades.
type ActivityRequest struct {
	ResourceID string `json:"recursoId"`
	StartDate  string `json:"fechaInicio"`
	StartTime  string `json:"horaInicio"`
	EndTime    string `json:"horaFin,omitempty"`
	EndDate    string `json:"fechaFin,omitempty"`
	WorkID     string `json:"obraId"`
	Type       string `json:"tipo"`
	Notes      string `json:"notas"`
}

// ValidateRequest is the payload for POST /api/actividades/validate.
type ValidateRequest struct {
	ResourceID string `json:"recursoId"`
	StartDate  string `json:"fechaInicio"`
	StartTime  string `json:"horaInicio"`
	EndTime    string `json:"horaFin,omitempty"`
	EndDate    string `json:"fechaFin,omitempty"`
	ExcludeID  string `json:"excluirId,omitempty"`
}

// CloseRequest is the payload for PUT /api/actividades/{id}/cerrar.
// FechaFin defaults to the shift date.
type CloseRequest struct {
	EndTime string `json:"horaFin"`
	EndDate string `json:"fechaFin,omitempty"`
}

// schedule is the parsed, grid-checked form of the time fields of a request.
type schedule struct {
	resourceID string
	date       time.Time
	interval   domain.Interval
}

func parseSchedule(resourceID, startDate, startTime, endTime, endDate string) (schedule, error) {
	if strings.TrimSpace(resourceID) == "" {
		return schedule{}, errMissingField("recursoId")
	}
	date, err := parseDate("fechaInicio", startDate)
	if err != nil {
		return schedule{}, err
	}
	start, err := timegrid.ParseAligned(startTime)
	if err != nil {
		return schedule{}, err
	}

	out := schedule{resourceID: resourceID, date: date, interval: domain.OpenInterval(start)}
	if strings.TrimSpace(endTime) == "" {
		if strings.TrimSpace(endDate) != "" {
			return schedule{}, errMissingField("horaFin")
		}
		return out, nil
	}

	clock, err := timegrid.ParseAligned(endTime)
	if err != nil {
		return schedule{}, err
	}
	days := 0
	if strings.TrimSpace(endDate) != "" {
		end, err := parseDate("fechaFin", endDate)
		if err != nil {
			return schedule{}, err
		}
		days = int(end.Sub(date).Hours() / 24)
		if days < 0 {
			return schedule{}, fmt.Errorf("%w: fechaFin %s is before fechaInicio %s", domain.ErrInvalidRange, endDate, startDate)
		}
	}
	out.interval = domain.ClosedInterval(start, days*timegrid.MinutesPerDay+clock)
	return out, out.interval.Validate()
}

func parseDate(field, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, errMissingField(field)
	}
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &fieldError{field: field, detail: "fecha inválida, use AAAA-MM-DD"}
	}
	return d, nil
}

// fieldError reports a missing or malformed request field.
type fieldError struct {
	field  string
	detail string
}

func (e *fieldError) Error() string {
	return e.field + ": " + e.detail
}

func errMissingField(field string) error {
	return &fieldError{field: field, detail: "campo obligatorio"}
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"recursoId"`
	StartDate  string    `json:"fechaInicio"`
	StartTime  string    `json:"horaInicio"`
	EndDate    *string   `json:"fechaFin"`
	EndTime    *string   `json:"horaFin"`
	Open       bool      `json:"abierta"`
	WorkID     string    `json:"obraId"`
	Type       string    `json:"tipo"`
	Notes      string    `json:"notas"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// IntervalView is a start/end pair rendered as wall-clock strings.
type IntervalView struct {
	StartTime string  `json:"horaInicio"`
	EndTime   *string `json:"horaFin"`
}

// ScheduledView is returned by create and update. Requested is present only
// when the interval had to be moved.
type ScheduledView struct {
	ActivityView
	Adjusted  bool          `json:"ajustado"`
	Requested *IntervalView `json:"solicitado,omitempty"`
	Residual  bool          `json:"solapamientoResidual,omitempty"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// ConflictView describes one existing activity a candidate collides with.
type ConflictView struct {
	ActivityID string       `json:"actividadId"`
	WorkID     string       `json:"obraId"`
	Interval   IntervalView `json:"intervalo"`
	Action     string       `json:"accion,omitempty"`
}

// ValidateResponse answers POST /api/actividades/validate.
type ValidateResponse struct {
	HasConflicts bool           `json:"conflicto"`
	Conflicts    []ConflictView `json:"conflictos"`
}

// SlotsResponse answers GET /api/actividades/suggest-slots.
type SlotsResponse struct {
	Duration int            `json:"duracion"`
	Slots    []IntervalView `json:"slots"`
}

func toActivityView(a domain.Activity) ActivityView {
	view := ActivityView{
		ID:         a.ID,
		ResourceID: a.ResourceID,
		StartDate:  a.Date.Format(time.DateOnly),
		StartTime:  timegrid.ToClock(a.Interval.Start),
		Open:       a.IsOpen(),
		WorkID:     a.WorkID,
		Type:       a.ActivityType,
		Notes:      a.Notes,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if endDate, ok := a.EndDate(); ok {
		d := endDate.Format(time.DateOnly)
		c := timegrid.ToClock(*a.Interval.End)
		view.EndDate, view.EndTime = &d, &c
	}
	return view
}

func toIntervalView(iv domain.Interval) IntervalView {
	view := IntervalView{StartTime: timegrid.ToClock(iv.Start)}
	if end, ok := iv.EndMinutes(); ok {
		c := timegrid.ToClock(end)
		view.EndTime = &c
	}
	return view
}

func toScheduledView(s domain.Scheduled) ScheduledView {
	view := ScheduledView{ActivityView: toActivityView(s.Activity), Adjusted: s.Adjusted, Residual: s.Residual}
	if s.Adjusted {
		req := toIntervalView(s.Requested)
		view.Requested = &req
	}
	return view
}

func toConflictViews(conflicts []domain.Conflict) []ConflictView {
	out := make([]ConflictView, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, ConflictView{
			ActivityID: c.Existing.ID,
			WorkID:     c.Existing.WorkID,
			Interval:   toIntervalView(c.Existing.Interval),
			Action:     string(c.Action),
		})
	}
	return out
}
