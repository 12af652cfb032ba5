// Package feed renders a user's rules and tasks as an iCalendar feed, so
// any calendar client can subscribe to the planner without OAuth linking.
package feed

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/cyp0633/planner/internal/dateutil"
	"github.com/cyp0633/planner/server/storage"
)

const (
	prodID    = "-//planner//Task Feed//EN"
	uidSuffix = "@planner"

	// propDone marks completed tasks; VEVENT has no standard completion
	// status.
	propDone = "X-PLANNER-DONE"
)

var rruleWeekdays = [7]rrule.Weekday{
	rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA,
}

// Build assembles a VCALENDAR with one recurring VEVENT per rule and one
// single VEVENT per task. All events are all-day; times of day do not
// exist in the planner.
func Build(rules []*storage.Rule, tasks []*storage.Task) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	now := time.Now().UTC()

	for _, r := range rules {
		event, err := ruleEvent(r, now)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		cal.Children = append(cal.Children, event)
	}

	for _, t := range tasks {
		cal.Children = append(cal.Children, taskEvent(t, now))
	}

	return cal, nil
}

// Encode writes the feed for the given rules and tasks to w.
func Encode(w io.Writer, rules []*storage.Rule, tasks []*storage.Task) error {
	cal, err := Build(rules, tasks)
	if err != nil {
		return err
	}
	return ical.NewEncoder(w).Encode(cal)
}

func ruleEvent(r *storage.Rule, now time.Time) (*ical.Component, error) {
	if r.Weekday < 0 || r.Weekday > 6 {
		return nil, fmt.Errorf("weekday %d out of range", r.Weekday)
	}

	opt := rrule.ROption{
		Freq:  rrule.WEEKLY,
		Byweekday: []rrule.Weekday{rruleWeekdays[r.Weekday]},
	}
	if end, ok := r.End.Get(); ok {
		opt.Until = end.Time()
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build rrule: %w", err)
	}

	event := ical.NewComponent(ical.CompEvent)
	event.Props.SetText(ical.PropUID, r.ID+uidSuffix)
	event.Props.SetText(ical.PropSummary, r.Text)
	event.Props.SetDateTime(ical.PropDateTimeStamp, now)
	setAllDay(event, ical.PropDateTimeStart, firstOccurrence(r))
	event.Props.SetText(ical.PropRecurrenceRule, rule.String())

	return event, nil
}

func taskEvent(t *storage.Task, now time.Time) *ical.Component {
	event := ical.NewComponent(ical.CompEvent)
	event.Props.SetText(ical.PropUID, t.ID+uidSuffix)
	event.Props.SetText(ical.PropSummary, t.Text)
	event.Props.SetDateTime(ical.PropDateTimeStamp, now)
	setAllDay(event, ical.PropDateTimeStart, t.Date)
	if t.Done {
		event.Props.SetText(propDone, "TRUE")
	}
	return event
}

// firstOccurrence returns the first date on/after the rule's start that
// falls on its weekday; DTSTART must itself be a valid occurrence.
func firstOccurrence(r *storage.Rule) dateutil.Date {
	d := r.Start
	for d.Weekday() != r.Weekday {
		d = d.Next()
	}
	return d
}

func setAllDay(event *ical.Component, name string, d dateutil.Date) {
	prop := ical.NewProp(name)
	prop.SetValueType(ical.ValueDate)
	prop.Value = d.Time().Format("20060102")
	event.Props.Set(prop)
}
