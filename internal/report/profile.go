// Package report builds the energy dashboard's synthetic load profile and
// savings suggestions.
package report

import (
	"io"
	"math/rand/v2"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// Profile parameters.
const (
	// ProfileDays is the number of daily points in the series.
	ProfileDays = 31
	// MinDemand and MaxDemand bound the sampled demand in kW. MaxDemand is
	// exclusive.
	MinDemand = 5000
	MaxDemand = 7000
)

// ProfileStart is the first day of the sample series.
var ProfileStart = time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)

// Point is one daily demand sample.
type Point struct {
	Date  time.Time `json:"date"`
	Value int       `json:"value"`
}

// SampleProfile returns ProfileDays consecutive daily points starting at
// ProfileStart with values in [MinDemand, MaxDemand). A nil rng uses the
// global source.
func SampleProfile(rng *rand.Rand) []Point {
	points := make([]Point, ProfileDays)
	for i := range points {
		var n int
		if rng != nil {
			n = rng.IntN(MaxDemand - MinDemand)
		} else {
			n = rand.IntN(MaxDemand - MinDemand)
		}
		points[i] = Point{
			Date:  ProfileStart.AddDate(0, 0, i),
			Value: MinDemand + n,
		}
	}
	return points
}

// ProfileChart renders points as the "Perfil de Carga" line chart.
func ProfileChart(points []Point) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Perfil de Carga",
			Theme:     types.ThemeChalk,
			Width:     "100%",
			Height:    "480px",
		}),
		charts.WithTitleOpts(opts.Title{Title: "Perfil de Carga"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Data"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Consumo (kW)"}),
	)

	dates := make([]string, len(points))
	data := make([]opts.LineData, len(points))
	for i, p := range points {
		dates[i] = p.Date.Format("2006-01-02")
		data[i] = opts.LineData{Value: p.Value}
	}

	line.SetXAxis(dates).AddSeries("Demanda", data,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
	)
	return line
}

// RenderProfile writes the chart page for points to w.
func RenderProfile(w io.Writer, points []Point) error {
	return ProfileChart(points).Render(w)
}
