package server

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/lejeunerenard/file-assets/internal/eventstore"
	"github.com/lejeunerenard/file-assets/internal/logfields"
	"github.com/lejeunerenard/file-assets/internal/report"
)

// statusData is the machine-readable form of the status page.
type statusData struct {
	Status      string                      `json:"status"`
	StartedAt   time.Time                   `json:"started_at"`
	Uptime      string                      `json:"uptime"`
	Active      *eventstore.ExportSummary   `json:"active_export,omitempty"`
	History     []*eventstore.ExportSummary `json:"history"`
	LastReport  *report.Report              `json:"last_report,omitempty"`
	GeneratedAt time.Time                   `json:"generated_at"`
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data := s.statusData()

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, data)
		return
	}

	page, err := renderStatusHTML(data)
	if err != nil {
		s.logger.Error("status page render failed", logfields.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "status page render failed")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

func (s *HTTPServer) statusData() *statusData {
	started := s.daemon.StartTime()
	return &statusData{
		Status:      s.daemon.Status(),
		StartedAt:   started,
		Uptime:      time.Since(started).Round(time.Second).String(),
		Active:      s.daemon.ActiveExport(),
		History:     s.daemon.History(),
		LastReport:  s.daemon.LastReport(),
		GeneratedAt: time.Now().UTC(),
	}
}

func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// statusRenderer converts the page body from markdown. Goldmark escapes
// event and report text, so error messages cannot inject markup.
var statusRenderer = goldmark.New(goldmark.WithExtensions(extension.Table))

// statusMarkdown lays the page body out as markdown; the table plumbing
// stays out of the HTML template.
func statusMarkdown(data *statusData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Status:** %s\n\n", data.Status)
	fmt.Fprintf(&b, "**Uptime:** %s\n\n", data.Uptime)

	if data.Active != nil {
		fmt.Fprintf(&b, "Export `%s` is running (trigger: %s).\n\n",
			shortID(data.Active.ExportID), data.Active.Trigger)
	}

	b.WriteString("## Recent exports\n\n")
	if len(data.History) == 0 {
		b.WriteString("No exports recorded yet.\n\n")
	} else {
		b.WriteString("| Export | Trigger | Status | Outputs | Written | Skipped | Duration |\n")
		b.WriteString("| --- | --- | --- | --- | --- | --- | --- |\n")
		for _, e := range data.History {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %d | %d | %d | %s |\n",
				shortID(e.ExportID), e.Trigger, e.Status,
				e.OutputCount, e.WrittenCount, e.SkippedCount,
				e.Duration.Round(time.Millisecond))
		}
		b.WriteString("\n")
	}

	if rep := data.LastReport; rep != nil {
		b.WriteString("## Last report\n\n")
		fmt.Fprintf(&b, "Export `%s` finished %s with %d assets, %d outputs written and %d reused from cache.\n\n",
			shortID(rep.ID), rep.Status, rep.Totals.Assets, rep.Totals.Written, rep.Totals.Skipped)
		if rep.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n\n", rep.Error)
		}
		if len(rep.Outputs) > 0 {
			b.WriteString("| Kind | URI | Members | Action |\n")
			b.WriteString("| --- | --- | --- | --- |\n")
			for _, out := range rep.Outputs {
				fmt.Fprintf(&b, "| %s | `%s` | %d | %s |\n",
					out.Kind, out.URI, out.Members, out.Action)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderStatusHTML(data *statusData) ([]byte, error) {
	var body bytes.Buffer
	if err := statusRenderer.Convert([]byte(statusMarkdown(data)), &body); err != nil {
		return nil, err
	}

	var page bytes.Buffer
	err := statusTemplate.Execute(&page, map[string]any{
		"Body":        template.HTML(body.String()),
		"GeneratedAt": data.GeneratedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	return page.Bytes(), nil
}

var statusTemplate = template.Must(template.New("status").Parse(statusPage))

const statusPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>file-assets daemon</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 60rem; padding: 0 1rem; color: #1f2430; }
h1 { border-bottom: 2px solid #e3e6ec; padding-bottom: .4rem; }
table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
th, td { border: 1px solid #e3e6ec; padding: .4rem .6rem; text-align: left; font-size: .9rem; }
th { background: #f5f6f8; }
code { background: #f5f6f8; padding: .1rem .3rem; border-radius: 3px; font-size: .85em; }
footer { color: #8a8f9c; font-size: .8rem; margin-top: 2rem; }
</style>
</head>
<body>
<h1>file-assets daemon</h1>
{{.Body}}
<footer>Generated {{.GeneratedAt}}</footer>
</body>
</html>
`
