package handler

import (
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yuxishi/service-status-dashboard/internal/model"
)

func (h *Handler) ExportJSON(c *gin.Context) {
	resp := h.source.Collect(c.Request.Context())

	filename := fmt.Sprintf("service-status-%s.json", resp.FetchedAt.Format("2006-01-02"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ExportHTML(c *gin.Context) {
	resp := h.source.Collect(c.Request.Context())

	filename := fmt.Sprintf("service-status-%s.html", resp.FetchedAt.Format("2006-01-02"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(generateHTMLReport(resp)))
}

func generateHTMLReport(resp model.AllServicesResponse) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Service Status Report</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 20px; }
        h1 { color: #232f3e; }
        table { border-collapse: collapse; width: 100%; margin-top: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #232f3e; color: white; }
        tr:nth-child(even) { background-color: #f2f2f2; }
        .timestamp { color: #666; font-size: 0.9em; }
        .error { color: #b91c1c; }
    </style>
</head>
<body>
    <h1>Service Status Report</h1>
    <p class="timestamp">Generated: ` + resp.FetchedAt.Format("2006-01-02 15:04:05") + `</p>
    <table>
        <thead>
            <tr>
                <th>Service</th>
                <th>Status</th>
                <th>Details</th>
            </tr>
        </thead>
        <tbody>`)

	bal := resp.XMLRiver
	writeRow(&b, "XMLRiver balance", bal.Status, bal.Error,
		fmt.Sprintf("Balance %s, cost per request %s, rows available %s", bal.Balance, bal.CostPerRequest, bal.RowsAvailable))

	db := resp.Database
	details := db.ConnectionStatus
	if db.ResponseTime != "" {
		details += ", response time " + db.ResponseTime
	}
	if db.UniqueCompaniesCount != nil {
		details += fmt.Sprintf(", duplicate companies %d", *db.UniqueCompaniesCount)
	}
	writeRow(&b, "ClickHouse", db.Status, db.Error, details)

	q := resp.DaData
	parts := make([]string, 0, len(q.Accounts))
	for _, acc := range q.Accounts {
		parts = append(parts, fmt.Sprintf("%s (%s): %d remaining", acc.AccountName, acc.Date, acc.RemainingRequests))
	}
	writeRow(&b, "DaData", q.Status, q.Error, strings.Join(parts, "; "))

	s := resp.System
	writeRow(&b, "Server", s.Status, s.Error,
		fmt.Sprintf("CPU %.1f%%, RAM %.1f%% (%s), disk %.1f%% (%s)", s.CPUPercent, s.RAMPercent, s.RAMUsedGB, s.DiskPercent, s.DiskUsedGB))

	b.WriteString(`
        </tbody>
    </table>
</body>
</html>`)

	return b.String()
}

func writeRow(b *strings.Builder, service string, status model.Status, errMsg, details string) {
	if status == model.StatusError {
		details = `<span class="error">` + html.EscapeString(errMsg) + `</span>`
	} else {
		details = html.EscapeString(details)
	}
	fmt.Fprintf(b, `
            <tr>
                <td>%s</td>
                <td>%s</td>
                <td>%s</td>
            </tr>`, html.EscapeString(service), html.EscapeString(string(status)), details)
}
