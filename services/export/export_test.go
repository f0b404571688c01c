package exportsvc

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studywala/backend/core/plan"
)

func testPlan() plan.StudyPlan {
	start := time.Date(2023, 5, 1, 9, 0, 0, 0, time.UTC)
	p := plan.StudyPlan{
		ID:        "0c7e39a1-4d04-4e6a-a2ab-5a1cb3a3f001",
		Title:     "Finals prep",
		StartDate: start,
		EndDate:   start.AddDate(0, 1, 0),
		Sessions: []plan.Session{
			{
				ID: "s1", Title: "Algebra", Subject: "Math",
				StartTime: start, EndTime: start.Add(time.Hour),
				Duration: 60, Status: plan.SessionCompleted, Type: plan.SessionTypeStudy,
			},
			{
				ID: "s2", Title: "Optics", Subject: "Physics",
				StartTime: start.Add(24 * time.Hour), EndTime: start.Add(25 * time.Hour),
				Duration: 60, Status: plan.SessionScheduled, Type: plan.SessionTypeReview,
			},
		},
	}
	p.UpdateStatistics()
	return p
}

func TestExportJSON(t *testing.T) {
	svc := NewService()
	out, err := svc.Export(testPlan(), FormatJSON)
	require.NoError(t, err)

	var got plan.StudyPlan
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "Finals prep", got.Title)
	assert.Len(t, got.Sessions, 2)
}

func TestExportCSV(t *testing.T) {
	svc := NewService()
	out, err := svc.Export(testPlan(), FormatCSV)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 sessions
	assert.Equal(t, "title", records[0][0])
	assert.Equal(t, "Algebra", records[1][0])
	assert.Equal(t, "completed", records[1][5])
}

func TestExportHTML(t *testing.T) {
	svc := NewService()
	out, err := svc.Export(testPlan(), FormatHTML)
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, "<h1>Finals prep</h1>")
	assert.Contains(t, html, "Completion: 50%")
	assert.Contains(t, html, "Optics")
}

func TestExportUnknownFormat(t *testing.T) {
	svc := NewService()
	_, err := svc.Export(testPlan(), Format("xml"))
	assert.Equal(t, ErrUnknownFormat, err)
	assert.False(t, Format("xml").IsValid())
	assert.True(t, FormatCSV.IsValid())
}
