package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want StatusClass
	}{
		{200, Status2xx},
		{204, Status2xx},
		{301, Status3xx},
		{404, Status4xx},
		{429, Status4xx},
		{500, Status5xx},
		{503, Status5xx},
		{0, StatusOther},
		{199, StatusOther},
		{600, StatusOther},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ClassifyStatus(tt.code), "code %d", tt.code)
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	now := time.Now()

	valid := Event{TaskID: "t1", TS: now, Stage: StageTaskStart}
	require.NoError(t, valid.Validate())

	page := Event{
		TaskID:      "t1",
		TS:          now,
		Stage:       StagePageDone,
		Site:        "example.com",
		StatusClass: Status2xx,
	}
	require.NoError(t, page.Validate())

	tests := []struct {
		name string
		evt  Event
	}{
		{"missing task id", Event{TS: now, Stage: StageTaskStart}},
		{"missing timestamp", Event{TaskID: "t1", Stage: StageTaskStart}},
		{"unknown stage", Event{TaskID: "t1", TS: now, Stage: "NOPE"}},
		{"page without site", Event{TaskID: "t1", TS: now, Stage: StagePageDone, StatusClass: Status2xx}},
		{"page without status class", Event{TaskID: "t1", TS: now, Stage: StagePageDone, Site: "example.com"}},
		{"negative duration", Event{TaskID: "t1", TS: now, Stage: StageTaskDone, Dur: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Error(t, tt.evt.Validate())
		})
	}
}
