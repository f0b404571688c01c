package exportsvc

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/studywala/backend/core/plan"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

var ErrUnknownFormat = errors.New("unknown export format")

func (f Format) IsValid() bool {
	return f == FormatJSON || f == FormatCSV || f == FormatHTML
}

// ContentType is the response content type for a rendered export.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

// Filename suggests a download name for the export.
func (f Format) Filename(p plan.StudyPlan) string {
	return fmt.Sprintf("study-plan-%s.%s", p.ID, f)
}

type Service struct {
	htmlTmpl *template.Template
}

func NewService() *Service {
	return &Service{htmlTmpl: template.Must(template.New("export").Parse(htmlExport))}
}

// Export renders a plan's progress report in the requested format.
func (svc *Service) Export(p plan.StudyPlan, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return svc.exportJSON(p)
	case FormatCSV:
		return svc.exportCSV(p)
	case FormatHTML:
		return svc.exportHTML(p)
	}
	return nil, ErrUnknownFormat
}

func (svc *Service) exportJSON(p plan.StudyPlan) ([]byte, error) {
	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encoding plan export")
	}
	return out, nil
}

func (svc *Service) exportCSV(p plan.StudyPlan) ([]byte, error) {
	var buff bytes.Buffer
	w := csv.NewWriter(&buff)

	records := [][]string{
		{"title", "subject", "start_time", "end_time", "duration_min", "status", "type", "completion_pct"},
	}
	for _, s := range p.Sessions {
		records = append(records, []string{
			s.Title,
			s.Subject,
			s.StartTime.Format(time.RFC3339),
			s.EndTime.Format(time.RFC3339),
			strconv.Itoa(s.Duration),
			string(s.Status),
			string(s.Type),
			strconv.Itoa(s.CompletionPercentage),
		})
	}
	if err := w.WriteAll(records); err != nil {
		return nil, errors.Wrap(err, "writing csv export")
	}
	return buff.Bytes(), nil
}

func (svc *Service) exportHTML(p plan.StudyPlan) ([]byte, error) {
	var buff bytes.Buffer
	data := struct {
		Plan       plan.StudyPlan
		Completion int
	}{Plan: p, Completion: p.CompletionPercentage()}

	if err := svc.htmlTmpl.Execute(&buff, data); err != nil {
		return nil, errors.Wrap(err, "rendering html export")
	}
	return buff.Bytes(), nil
}

const htmlExport = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>{{.Plan.Title}} - Progress Report</title>
</head>
<body>
	<h1>{{.Plan.Title}}</h1>
	{{with .Plan.Description}}<p>{{.}}</p>{{end}}
	<h2>Overview</h2>
	<ul>
		<li>Planned hours: {{printf "%.1f" .Plan.Statistics.TotalPlannedHours}}</li>
		<li>Completed hours: {{printf "%.1f" .Plan.Statistics.TotalCompletedHours}}</li>
		<li>Completion: {{.Completion}}%</li>
		<li>Sessions: {{.Plan.Statistics.CompletedSessions}}/{{.Plan.Statistics.TotalSessions}}</li>
		<li>Current streak: {{.Plan.Statistics.StreakDays}} day(s)</li>
		<li>Longest streak: {{.Plan.Statistics.LongestStreak}} day(s)</li>
	</ul>
	<h2>Subjects</h2>
	<table border="1" cellpadding="4">
		<tr><th>Subject</th><th>Hours studied</th><th>Sessions completed</th></tr>
		{{range .Plan.Statistics.SubjectStats}}
		<tr><td>{{.Subject}}</td><td>{{printf "%.1f" .HoursStudied}}</td><td>{{.SessionsCompleted}}</td></tr>
		{{end}}
	</table>
	<h2>Sessions</h2>
	<table border="1" cellpadding="4">
		<tr><th>Title</th><th>Subject</th><th>Start</th><th>Duration (min)</th><th>Status</th></tr>
		{{range .Plan.Sessions}}
		<tr><td>{{.Title}}</td><td>{{.Subject}}</td><td>{{.StartTime.Format "2006-01-02 15:04"}}</td><td>{{.Duration}}</td><td>{{.Status}}</td></tr>
		{{end}}
	</table>
</body>
</html>
`
