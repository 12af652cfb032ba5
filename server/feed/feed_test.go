package feed

import (
	"strings"
	"testing"

	"github.com/emersion/go-ical"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/planner/internal/dateutil"
	"github.com/cyp0633/planner/server/storage"
)

func TestBuild(t *testing.T) {
	rules := []*storage.Rule{{
		ID:      "r1",
		UserID:  "alice",
		Text:    "Gym",
		Weekday: 1,
		Start:   dateutil.MustParseISO("2024-01-03"), // Wednesday; first Monday is the 8th
		End:     mo.Some(dateutil.MustParseISO("2024-06-30")),
	}}
	tasks := []*storage.Task{{
		ID:     "t1",
		UserID: "alice",
		Date:   dateutil.MustParseISO("2024-01-05"),
		Text:   "Buy milk",
		Done:   true,
	}}

	cal, err := Build(rules, tasks)
	require.NoError(t, err)
	require.Len(t, cal.Children, 2)

	ruleEvent := cal.Children[0]
	assert.Equal(t, ical.CompEvent, ruleEvent.Name)
	uid, err := ruleEvent.Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, "r1@planner", uid)

	dtstart := ruleEvent.Props.Get(ical.PropDateTimeStart)
	require.NotNil(t, dtstart)
	assert.Equal(t, "20240108", dtstart.Value)

	rruleProp, err := ruleEvent.Props.Text(ical.PropRecurrenceRule)
	require.NoError(t, err)
	assert.Contains(t, rruleProp, "FREQ=WEEKLY")
	assert.Contains(t, rruleProp, "BYDAY=MO")
	assert.Contains(t, rruleProp, "UNTIL=")

	taskEvent := cal.Children[1]
	summary, err := taskEvent.Props.Text(ical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", summary)
	done, err := taskEvent.Props.Text(propDone)
	require.NoError(t, err)
	assert.Equal(t, "TRUE", done)
}

func TestBuildUnboundedRuleHasNoUntil(t *testing.T) {
	rules := []*storage.Rule{{
		ID:      "r1",
		UserID:  "alice",
		Text:    "Gym",
		Weekday: 0,
		Start:   dateutil.MustParseISO("2024-01-07"), // already a Sunday
	}}

	cal, err := Build(rules, nil)
	require.NoError(t, err)
	require.Len(t, cal.Children, 1)

	dtstart := cal.Children[0].Props.Get(ical.PropDateTimeStart)
	require.NotNil(t, dtstart)
	assert.Equal(t, "20240107", dtstart.Value)

	rruleProp, err := cal.Children[0].Props.Text(ical.PropRecurrenceRule)
	require.NoError(t, err)
	assert.NotContains(t, rruleProp, "UNTIL=")
}

func TestEncode(t *testing.T) {
	tasks := []*storage.Task{{
		ID:     "t1",
		UserID: "alice",
		Date:   dateutil.MustParseISO("2024-01-05"),
		Text:   "Buy milk",
	}}

	var sb strings.Builder
	require.NoError(t, Encode(&sb, nil, tasks))

	out := sb.String()
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "SUMMARY:Buy milk")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20240105")
	assert.Contains(t, out, "END:VCALENDAR")
}
