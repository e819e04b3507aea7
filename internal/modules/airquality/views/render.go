package views

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"

	"aqi-explorer/internal/modules/airquality/classify"
	"aqi-explorer/internal/modules/airquality/pipeline"
	"aqi-explorer/internal/modules/airquality/types"
)

var pageTmpl *template.Template

var errNotLoaded = errors.New("templates not loaded: call views.LoadTemplates during startup")

// loadTemplatesFromFS loads page templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	pageTmpl, err = template.ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	return nil
}

// LoadTemplates loads embedded templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

type IndexData struct {
	DemoMode        bool
	SelectionScene  string
	ReadyIntervalMs int64
	ReadyAttempts   int
	Lookups         LookupsData
}

func RenderIndex(w io.Writer, data *IndexData) error {
	return execute(w, "index.html", data)
}

type PollutantValue struct {
	Label string
	Value string
}

// ResultsData is the view model for the results panel.
type ResultsData struct {
	ID          string
	Source      string
	Name        string
	Index       int
	Class       string
	Status      string
	Description string
	Pollutants  []PollutantValue
	Blurb       classify.Blurb
	Synthetic   bool
	Scene       string
}

// NewResultsData flattens res for the template. scene is the results map
// scene to replay in the browser.
func NewResultsData(res pipeline.Result, scene []byte) ResultsData {
	return ResultsData{
		ID:          res.ID,
		Source:      res.Source.String(),
		Name:        res.Location.DisplayName,
		Index:       res.Reading.Index,
		Class:       res.Info.Class,
		Status:      res.Info.Status.String(),
		Description: res.Info.Description,
		Pollutants:  pollutantValues(res.Reading.Pollutants),
		Blurb:       res.Blurb,
		Synthetic:   res.Reading.Synthetic,
		Scene:       string(scene),
	}
}

// RenderResultsPartial executes only the results partial into w.
func RenderResultsPartial(w io.Writer, data *ResultsData) error {
	return execute(w, "partials/results.html", data)
}

type LookupRow struct {
	ID          string
	Query       string
	DisplayName string
	Index       int
	Class       string
	Status      string
	Synthetic   bool
	CreatedAt   time.Time
}

type LookupsData struct {
	Rows []LookupRow
}

func NewLookupsData(lookups []types.Lookup) LookupsData {
	rows := make([]LookupRow, 0, len(lookups))
	for _, l := range lookups {
		rows = append(rows, LookupRow{
			ID:          l.ID,
			Query:       l.Query,
			DisplayName: l.DisplayName,
			Index:       l.Index,
			Class:       classify.Classify(l.Index).Class,
			Status:      l.Status,
			Synthetic:   l.Synthetic,
			CreatedAt:   l.CreatedAt,
		})
	}
	return LookupsData{Rows: rows}
}

// RenderLookupsPartial executes only the recent lookups partial into w.
// Use for HTMX fragment refresh after each lookup.
func RenderLookupsPartial(w io.Writer, data *LookupsData) error {
	return execute(w, "partials/lookups.html", data)
}

type ErrorData struct {
	Field   string
	Message string
}

func RenderErrorPartial(w io.Writer, data *ErrorData) error {
	return execute(w, "partials/error.html", data)
}

func execute(w io.Writer, name string, data any) error {
	if pageTmpl == nil {
		return errNotLoaded
	}
	return pageTmpl.ExecuteTemplate(w, name, data)
}

// pollutantValues lists the primary pollutants first, then any extras the
// provider returned.
func pollutantValues(p map[types.Pollutant]float64) []PollutantValue {
	out := make([]PollutantValue, 0, len(p))
	seen := make(map[types.Pollutant]bool, len(types.PrimaryPollutants))
	for _, k := range types.PrimaryPollutants {
		seen[k] = true
		v, ok := p[k]
		if !ok {
			out = append(out, PollutantValue{Label: k.Label(), Value: "N/A"})
			continue
		}
		out = append(out, PollutantValue{Label: k.Label(), Value: formatConcentration(v)})
	}
	for _, k := range []types.Pollutant{types.CO, types.NO, types.SO2, types.NH3} {
		if v, ok := p[k]; ok && !seen[k] {
			out = append(out, PollutantValue{Label: k.Label(), Value: formatConcentration(v)})
		}
	}
	return out
}

func formatConcentration(v float64) string {
	return fmt.Sprintf("%.1f μg/m³", v)
}
