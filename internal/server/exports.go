package server

import (
	"html/template"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/edgard/zalobot/internal/errs"
	"github.com/edgard/zalobot/internal/export"
	"github.com/edgard/zalobot/internal/logger"
)

var previewTmpl = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html lang="vi">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Name}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        table { border-collapse: collapse; width: 100%; }
        th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; vertical-align: top; white-space: pre-wrap; }
        th { background: #f3f3f3; }
        tr:nth-child(even) td { background: #fafafa; }
        .meta { color: #666; margin-bottom: 12px; }
    </style>
</head>
<body>
    <h2>{{.Name}}</h2>
    <div class="meta">{{len .Table.Rows}} dòng · <a href="{{.DownloadURL}}">Tải file CSV</a></div>
    <table>
        <thead><tr>{{range .Table.Header}}<th>{{.}}</th>{{end}}</tr></thead>
        <tbody>
        {{range .Table.Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
        {{end}}
        </tbody>
    </table>
</body>
</html>
`))

type previewPage struct {
	Name        string
	DownloadURL string
	Table       export.Table
}

func (s *Server) resolveExport(c *gin.Context) (string, bool) {
	name := c.Param("name")
	path, err := s.deps.Exports.Resolve(name)
	if err != nil {
		logger.FromContext(c, s.logger).Warn("Export not served", "name", name, "error", err)
		status := http.StatusNotFound
		if errs.Is(err, errs.CodeValidation) {
			status = http.StatusBadRequest
		}
		c.String(status, http.StatusText(status))
		return "", false
	}
	return path, true
}

func (s *Server) handleExportDownload(c *gin.Context) {
	path, ok := s.resolveExport(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.File(path)
}

func (s *Server) handleExportView(c *gin.Context) {
	path, ok := s.resolveExport(c)
	if !ok {
		return
	}
	log := logger.FromContext(c, s.logger)

	f, err := os.Open(path)
	if err != nil {
		log.Error("Failed to open export", "path", path, "error", err)
		c.String(http.StatusInternalServerError, "Error reading file")
		return
	}
	defer f.Close()

	table, err := export.ReadTable(f)
	if err != nil {
		log.Error("Failed to parse export", "path", path, "error", err)
		c.String(http.StatusInternalServerError, "Error reading file")
		return
	}

	name := c.Param("name")
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := previewTmpl.Execute(c.Writer, previewPage{
		Name:        name,
		DownloadURL: "../" + name,
		Table:       table,
	}); err != nil {
		log.Error("Failed to render export preview", "error", err)
	}
}
