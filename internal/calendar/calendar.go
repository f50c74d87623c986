// Package calendar renders the board as an iCalendar feed of VTODOs so the
// calendar view can be subscribed to from other clients.
package calendar

import (
	"io"
	"strconv"
	"time"

	"github.com/emersion/go-ical"
	"github.com/samber/mo"

	"taskboard/internal/models"
	"taskboard/internal/recurrence"
)

const productID = "-//taskboard//Task Board//EN"

// RFC 5545 priorities: 1 is highest, 9 lowest.
var priorities = map[models.Priority]string{
	models.PriorityHigh:   "1",
	models.PriorityMedium: "5",
	models.PriorityLow:    "9",
}

// Build returns a calendar with one VTODO per task. stamp is used as DTSTAMP.
func Build(tasks []models.Task, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	for _, t := range tasks {
		cal.Children = append(cal.Children, todo(t, stamp))
	}
	return cal
}

// Encode writes the calendar for tasks to w.
func Encode(w io.Writer, tasks []models.Task, stamp time.Time) error {
	return ical.NewEncoder(w).Encode(Build(tasks, stamp))
}

func todo(t models.Task, stamp time.Time) *ical.Component {
	comp := ical.NewComponent(ical.CompToDo)
	comp.Props.SetText(ical.PropUID, t.ID)
	comp.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	comp.Props.SetDateTime(ical.PropCreated, t.CreatedAt.UTC())
	comp.Props.SetText(ical.PropSummary, t.Title)
	if t.Description != "" {
		comp.Props.SetText(ical.PropDescription, t.Description)
	}
	if p, ok := priorities[t.Priority]; ok {
		comp.Props.SetText(ical.PropPriority, p)
	}
	schedule(comp, t)

	if t.CompletedAt != nil {
		comp.Props.SetText(ical.PropStatus, "COMPLETED")
		comp.Props.SetDateTime(ical.PropCompleted, t.CompletedAt.UTC())
	} else {
		comp.Props.SetText(ical.PropStatus, "NEEDS-ACTION")
	}

	if t.ParentTaskID != nil {
		comp.Props.SetText(ical.PropRelatedTo, *t.ParentTaskID)
	}

	return comp
}

// schedule sets the timing properties. A recurring task is anchored at its
// first occurrence with DTSTART and carries no DUE. A task with a start time
// gets a timed DTSTART and its DURATION. Otherwise the due date becomes DUE.
func schedule(comp *ical.Component, t models.Task) {
	var start mo.Option[time.Duration]
	if t.StartTime != nil {
		if offset, err := models.ParseTimeOfDay(*t.StartTime); err == nil {
			start = mo.Some(offset)
		}
	}

	if t.IsRecurring && t.Recurrence != nil {
		if series(comp, t, start) {
			return
		}
	}
	if t.DueDate == nil {
		return
	}
	if offset, ok := start.Get(); ok {
		comp.Props.SetDateTime(ical.PropDateTimeStart, t.DueDate.UTC().Add(offset))
		setDuration(comp, t.Duration())
		return
	}
	comp.Props.SetDate(ical.PropDue, *t.DueDate)
}

func series(comp *ical.Component, t models.Task, start mo.Option[time.Duration]) bool {
	origin := t.CreatedAt
	if t.DueDate != nil {
		origin = *t.DueDate
	}
	rule := *t.Recurrence
	offset, timed := start.Get()
	if timed && t.DueDate != nil {
		origin = t.DueDate.UTC().Add(offset)
		if rule.EndDate != nil {
			end := rule.EndDate.Add(offset)
			rule.EndDate = &end
		}
	}

	s, ok := recurrence.SeriesOf(origin, rule, !timed)
	if !ok {
		return false
	}
	if s.AllDay {
		comp.Props.SetDate(ical.PropDateTimeStart, s.Start)
	} else {
		comp.Props.SetDateTime(ical.PropDateTimeStart, s.Start)
		setDuration(comp, t.Duration())
	}
	if s.Rule != "" {
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.Value = s.Rule
		comp.Props.Set(prop)
	}
	for _, d := range s.Dates {
		prop := ical.NewProp(ical.PropRecurrenceDates)
		if s.AllDay {
			prop.SetDate(d)
		} else {
			prop.SetDateTime(d)
		}
		comp.Props.Add(prop)
	}
	return true
}

// setDuration writes d as an RFC 5545 duration such as PT1H30M.
func setDuration(comp *ical.Component, d time.Duration) {
	if d <= 0 {
		return
	}
	value := "PT"
	if h := int(d / time.Hour); h > 0 {
		value += strconv.Itoa(h) + "H"
	}
	if m := int(d % time.Hour / time.Minute); m > 0 {
		value += strconv.Itoa(m) + "M"
	}
	if value == "PT" {
		return
	}
	prop := ical.NewProp(ical.PropDuration)
	prop.Value = value
	comp.Props.Set(prop)
}
