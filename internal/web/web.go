// Package web holds the embedded admin pages and their renderers.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/kiranshivaraju/logsink/pkg/models"
)

//go:embed templates/*.html favicon.ico
var files embed.FS

var pages = template.Must(template.ParseFS(files,
	"templates/log_content.html",
	"templates/statistics_users.html",
))

// MenuItem is one group in the category page menu.
type MenuItem struct {
	Hash  string
	Label string
	Class string
}

// LogContentPage feeds log_content.html.
type LogContentPage struct {
	LogType string
	IsAdmin bool
	Items   []MenuItem
}

// StatisticsPage feeds statistics_users.html.
type StatisticsPage struct {
	CliType string
	Rows    []models.DailyCount
}

func mustRead(name string) []byte {
	b, err := files.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return b
}

var (
	indexHTML     = mustRead("templates/index.html")
	emptyListHTML = mustRead("templates/log_list_empty.html")
	favicon       = mustRead("favicon.ico")
)

// IndexHTML is the admin single-page app.
func IndexHTML() []byte { return indexHTML }

// EmptyListingHTML is shown for a category with no groups.
func EmptyListingHTML() []byte { return emptyListHTML }

// Favicon is the site icon in ICO format.
func Favicon() []byte { return favicon }

// RenderLogContent renders the category menu page.
func RenderLogContent(page LogContentPage) ([]byte, error) {
	return render("log_content.html", page)
}

// RenderStatistics renders the daily report table.
func RenderStatistics(page StatisticsPage) ([]byte, error) {
	return render("statistics_users.html", page)
}

func render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
