package report

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/felixgeelhaar/scovctl/internal/domain"
)

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Statement Coverage</title>
    <style>
        :root { --pass: #16A34A; --fail: #DC2626; --warn: #CA8A04; --bg: #0f172a; --card: #1e293b; --text: #f8fafc; --muted: #94a3b8; --border: #334155; }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background: var(--bg); color: var(--text); line-height: 1.6; padding: 2rem; }
        .container { max-width: 1200px; margin: 0 auto; }
        h1 { font-size: 2rem; font-weight: 600; margin-bottom: 0.5rem; }
        .timestamp { color: var(--muted); font-size: 0.875rem; margin-bottom: 2rem; }
        .summary { display: flex; gap: 1rem; margin-bottom: 2rem; }
        .card { background: var(--card); border: 1px solid var(--border); border-radius: 0.5rem; padding: 1rem 1.5rem; }
        .card.pass { border-left: 4px solid var(--pass); }
        .card.fail { border-left: 4px solid var(--fail); }
        .label { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.05em; color: var(--muted); }
        .value { font-size: 1.5rem; font-weight: 600; }
        table { width: 100%; border-collapse: collapse; background: var(--card); border-radius: 0.5rem; overflow: hidden; margin-bottom: 2rem; }
        th, td { padding: 0.75rem 1rem; text-align: left; border-bottom: 1px solid var(--border); }
        th { font-size: 0.75rem; text-transform: uppercase; color: var(--muted); background: rgba(0,0,0,0.2); }
        td.dir { color: var(--muted); font-family: monospace; font-size: 0.8rem; }
        .status { padding: 0.25rem 0.5rem; border-radius: 0.25rem; font-size: 0.75rem; font-weight: 600; }
        .status.pass { background: rgba(22,163,74,0.2); color: var(--pass); }
        .status.fail { background: rgba(220,38,38,0.2); color: var(--fail); }
        .status.warn { background: rgba(202,138,4,0.2); color: var(--warn); }
        .bar { width: 100%; height: 6px; background: var(--border); border-radius: 3px; overflow: hidden; }
        .fill { height: 100%; }
        .fill.pass { background: var(--pass); }
        .fill.fail { background: var(--fail); }
        .fill.warn { background: var(--warn); }
        .warnings { border: 1px solid rgba(202,138,4,0.3); background: rgba(202,138,4,0.1); border-radius: 0.5rem; padding: 1rem; margin-bottom: 2rem; color: var(--muted); }
        .warnings h3 { color: var(--warn); font-size: 0.875rem; text-transform: uppercase; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Statement Coverage</h1>
        <p class="timestamp">Generated {{.Timestamp}}</p>

        <div class="summary">
            <div class="card {{if .Passed}}pass{{else}}fail{{end}}">
                <div class="label">Status</div>
                <div class="value">{{if .Passed}}PASS{{else}}FAIL{{end}}</div>
            </div>
            <div class="card">
                <div class="label">Modules</div>
                <div class="value">{{len .Modules}}</div>
            </div>
            <div class="card">
                <div class="label">Executed statements</div>
                <div class="value">{{.Executed}}</div>
            </div>
            {{if .HasOverall}}
            <div class="card">
                <div class="label">Overall</div>
                <div class="value">{{printf "%.1f" .Overall}}%</div>
            </div>
            {{end}}
        </div>

        {{if .Warnings}}
        <div class="warnings">
            <h3>Warnings</h3>
            <ul>{{range .Warnings}}<li>{{.}}</li>{{end}}</ul>
        </div>
        {{end}}

        <table>
            <thead>
                <tr><th>Module</th><th>Data directory</th><th>Executed</th><th>Total</th><th>Coverage</th><th>Required</th><th>Status</th></tr>
            </thead>
            <tbody>
                {{range .Modules}}
                <tr>
                    <td>{{.Module}}</td>
                    <td class="dir">{{.DataDir}}</td>
                    <td>{{.Executed}}</td>
                    <td>{{if .HasTotal}}{{.Total}}{{else}}-{{end}}</td>
                    <td>
                        {{if .HasTotal}}
                        {{printf "%.1f" .Percent}}%{{with .Delta}} ({{printf "%+.1f" .}}){{end}}
                        <div class="bar"><div class="fill {{statusClass .Status}}" style="width: {{barWidth .Percent}}%"></div></div>
                        {{else}}-{{end}}
                    </td>
                    <td>{{printf "%.1f" .Required}}%</td>
                    <td><span class="status {{statusClass .Status}}">{{.Status}}</span></td>
                </tr>
                {{end}}
            </tbody>
        </table>
    </div>
</body>
</html>`

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"statusClass": func(s domain.Status) string { return strings.ToLower(string(s)) },
	"barWidth": func(p float64) string {
		return fmt.Sprintf("%.0f", min(p, 100))
	},
}).Parse(htmlTemplate))

type htmlData struct {
	domain.Result
	Timestamp  string
	Overall    float64
	HasOverall bool
}

func writeHTML(w io.Writer, result domain.Result) error {
	data := htmlData{
		Result:    result,
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
	}
	data.Overall, data.HasOverall = result.OverallPercent()
	return reportTemplate.Execute(w, data)
}
