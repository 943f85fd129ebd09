package imagegen

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/lox/marinedash/internal/models"
)

const (
	ChartWidth  = 960
	ChartHeight = 480

	maxTicks = 10
)

var ErrEmptySeries = errors.New("series has no history")

// GenerateChart renders a metric's history as a PNG line chart.
func GenerateChart(info models.MetricInfo, series models.MetricSeries) ([]byte, error) {
	n := len(series.History)
	if n == 0 {
		return nil, ErrEmptySeries
	}

	x := make([]float64, n)
	y := make([]float64, n)
	minY, maxY := series.History[0].Value, series.History[0].Value
	for i, p := range series.History {
		x[i] = float64(i)
		y[i] = p.Value
		minY = min(minY, p.Value)
		maxY = max(maxY, p.Value)
	}

	// go-chart rejects zero-width ranges.
	pad := (maxY - minY) * 0.1
	if pad == 0 {
		pad = max(0.5, maxY*0.1)
	}
	maxX := float64(max(n-1, 1))

	lineColor := drawing.ColorFromHex(strings.TrimPrefix(info.Color, "#"))

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, fmt.Sprintf("%%.%df", info.Precision))
	}

	name := info.Label
	if info.Unit != "" {
		name += " (" + info.Unit + ")"
	}

	graph := chart.Chart{
		Width:  ChartWidth,
		Height: ChartHeight,
		XAxis: chart.XAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: maxX},
			Ticks: labelTicks(series.History),
		},
		YAxis: chart.YAxis{
			Name:           name,
			Range:          &chart.ContinuousRange{Min: minY - pad, Max: maxY + pad},
			ValueFormatter: valueFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    info.Label,
				XValues: x,
				YValues: y,
				Style: chart.Style{
					StrokeColor: lineColor,
					StrokeWidth: 3,
					FillColor:   lineColor.WithAlpha(48),
					DotColor:    lineColor,
					DotWidth:    3,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// labelTicks thins history labels to at most maxTicks evenly spaced ticks.
func labelTicks(history []models.HistoricalPoint) []chart.Tick {
	step := (len(history) + maxTicks - 1) / maxTicks
	if step < 1 {
		step = 1
	}
	ticks := make([]chart.Tick, 0, maxTicks+1)
	for i := 0; i < len(history); i += step {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: history[i].Label})
	}
	if last := len(history) - 1; last%step != 0 {
		ticks = append(ticks, chart.Tick{Value: float64(last), Label: history[last].Label})
	}
	return ticks
}
