package ingest

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound(t *testing.T) {
	tests := []struct {
		in     float64
		places int32
		want   float64
	}{
		{2.675, 2, 2.68},
		{-1.005, 2, -1.01},
		{1.2345, 3, 1.235},
		{0.5, 0, 1},
		{-0.5, 0, -1},
		{33.1234, 3, 33.123},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.in, tt.places), "Round(%v, %d)", tt.in, tt.places)
	}

	assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
	assert.True(t, math.IsInf(Round(math.Inf(1), 2), 1))
}

func TestDateLabel(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2026-10-05T09:00", "10-05"},
		{"2026-10-05", "10-05"},
		{"2026-09-30T18:00:00Z", "10-01"},
		{"2026-09-30T12:00:00", "09-30"},
		{"not a date", "not a date"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, DateLabel(tt.raw, kst))
		})
	}
}

func TestParseMarineWeather(t *testing.T) {
	temp, wave, err := ParseMarineWeather([]byte(marineFixture(10)), kst)
	require.NoError(t, err)

	require.Len(t, temp.History, 10)
	require.Len(t, wave.History, 10)
	assert.Equal(t, Round(15+9*0.125, 2), temp.Current)
	assert.Equal(t, temp.History[9].Value, temp.Current)
	assert.Equal(t, 0.59, wave.Current)
	assert.Equal(t, "10-01", temp.History[0].Label)
	assert.IsNonDecreasing(t, labels(temp.History))
	assert.IsNonDecreasing(t, labels(wave.History))
}

func TestParseMarineWeather_DropsIncompleteSamples(t *testing.T) {
	body := `{"hourly":{
		"time":["2026-10-01T00:00","2026-10-01T01:00","2026-10-01T02:00","2026-10-01T03:00"],
		"sea_surface_temperature":[18.1,null,18.3,18.4],
		"wave_height":[1.0,1.1,null]
	}}`
	temp, wave, err := ParseMarineWeather([]byte(body), kst)
	require.NoError(t, err)

	require.Len(t, temp.History, 1)
	assert.Equal(t, 18.1, temp.Current)
	assert.Equal(t, 1.0, wave.Current)
}

func TestParseMarineWeather_KeepsLatestThirty(t *testing.T) {
	temp, wave, err := ParseMarineWeather([]byte(marineFixture(72)), kst)
	require.NoError(t, err)

	assert.Len(t, temp.History, 30)
	assert.Len(t, wave.History, 30)
	assert.Equal(t, Round(15+71*0.125, 2), temp.Current)
	assert.Equal(t, "10-03", temp.History[29].Label)
	assert.IsNonDecreasing(t, labels(temp.History))
	assert.IsNonDecreasing(t, labels(wave.History))
}

func TestParseMarineWeather_NoData(t *testing.T) {
	tests := map[string]string{
		"no hourly":   `{}`,
		"empty":       `{"hourly":{"time":[],"sea_surface_temperature":[],"wave_height":[]}}`,
		"all missing": `{"hourly":{"time":["2026-10-01T00:00"],"sea_surface_temperature":[null],"wave_height":[0.4]}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseMarineWeather([]byte(body), kst)
			assert.ErrorIs(t, err, ErrNoData)
		})
	}
}

func TestParseMarineWeather_BadJSON(t *testing.T) {
	_, _, err := ParseMarineWeather([]byte(`<html>`), kst)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestNormalizeLongitude(t *testing.T) {
	assert.Equal(t, 130.8, NormalizeLongitude(130.8))
	assert.Equal(t, 270.0, NormalizeLongitude(-90))
	assert.Equal(t, 0.0, NormalizeLongitude(360))
	assert.InDelta(t, 10.0, NormalizeLongitude(730), 1e-9)
}

func TestBuildGriddapQuery(t *testing.T) {
	u := BuildGriddapQuery("https://example.org/erddap/griddap/ds.json", "sss", 37.5, -130.8)

	base, rawQuery, ok := strings.Cut(u, "?")
	require.True(t, ok)
	assert.Equal(t, "https://example.org/erddap/griddap/ds.json", base)
	assert.NotContains(t, rawQuery, "[")
	assert.NotContains(t, rawQuery, "(")

	expr, err := url.QueryUnescape(rawQuery)
	require.NoError(t, err)
	assert.Equal(t, "sss[(last-29):1:(last)][(37.50)][(229.20)]", expr)
}

func TestParseGriddap(t *testing.T) {
	s, err := ParseGriddap([]byte(griddapFixture("33.1234", `"NaN"`, `"33.2"`, "null")), "sss", kst)
	require.NoError(t, err)

	require.Len(t, s.History, 2)
	assert.Equal(t, 33.123, s.History[0].Value)
	assert.Equal(t, "09-01", s.History[0].Label)
	assert.Equal(t, 33.2, s.Current)
}

func TestParseGriddap_LabelsInDateOrder(t *testing.T) {
	s, err := ParseGriddap([]byte(griddapFixture("33.1", "null", "33.3", "33.4", `"NaN"`, "33.6", "33.7")), "sss", kst)
	require.NoError(t, err)

	require.Len(t, s.History, 5)
	assert.Equal(t, []string{"09-01", "09-03", "09-04", "09-06", "09-07"}, labels(s.History))
	assert.IsNonDecreasing(t, labels(s.History))
	assert.Equal(t, 33.7, s.Current)
}

func TestParseGriddap_NoData(t *testing.T) {
	_, err := ParseGriddap([]byte(`{"table":{"columnNames":[],"rows":[]}}`), "sss", kst)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = ParseGriddap([]byte(griddapFixture(`"NaN"`, "null")), "sss", kst)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestParseCSV(t *testing.T) {
	rows, err := ParseCSV("a,\"a, b\",\"a\"\"b\"\n 1 , 2,3\n")
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "a, b", `a"b`}, rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, rows[1])
}

func TestComputePlasticSeries(t *testing.T) {
	s, err := ComputePlasticSeries(oceanFixture, wasteFixture, "South Korea")
	require.NoError(t, err)

	assert.Equal(t, 0.5, s.Current)

	labels := make([]string, 0, len(s.History))
	for _, p := range s.History {
		labels = append(labels, p.Label)
	}
	assert.Equal(t, []string{
		"2010 waste generation",
		"2010 mismanaged waste",
		"2010 ocean inflow",
		"2019 mismanaged waste",
		"2019 ocean inflow",
	}, labels)
	assert.Equal(t, 5.0, s.History[0].Value)
	assert.Equal(t, 1.2, s.History[1].Value)
	assert.Equal(t, 0.3, s.History[2].Value)
	assert.Equal(t, 0.5, s.History[4].Value)
}

func TestComputePlasticSeries_Entities(t *testing.T) {
	china, err := ComputePlasticSeries(oceanFixture, wasteFixture, "China")
	require.NoError(t, err)
	assert.Equal(t, 1.0, china.Current)

	japan, err := ComputePlasticSeries(oceanFixture, wasteFixture, "Japan")
	require.NoError(t, err)
	assert.Equal(t, 0.2, japan.Current)
}

func TestComputePlasticSeries_SchemaDrift(t *testing.T) {
	renamed := strings.Replace(oceanFixture, "Mismanaged waste emitted to the ocean", "Ocean emissions", 1)
	_, err := ComputePlasticSeries(renamed, wasteFixture, "South Korea")
	assert.ErrorIs(t, err, ErrSchemaDrift)

	renamed = strings.Replace(wasteFixture, "Plastic waste generation", "Waste generated", 1)
	_, err = ComputePlasticSeries(oceanFixture, renamed, "South Korea")
	assert.ErrorIs(t, err, ErrSchemaDrift)
}

func TestComputePlasticSeries_MissingEntity(t *testing.T) {
	_, err := ComputePlasticSeries(oceanFixture, wasteFixture, "Atlantis")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = ComputePlasticSeries("", wasteFixture, "Japan")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestPlasticIndex(t *testing.T) {
	assert.Equal(t, 0.5, PlasticIndex(500, 1000))
	assert.Equal(t, 1.0, PlasticIndex(1500, 1000))
	assert.Equal(t, 0.0, PlasticIndex(-5, 1000))
	assert.Equal(t, 0.0, PlasticIndex(5, 0))
	assert.Equal(t, 0.333, PlasticIndex(1, 3))
	assert.Equal(t, 0.0, PlasticIndex(math.NaN(), 3))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, KindCanceled, Kind(&SourceError{Source: "salinity", Err: context.Canceled}))
	assert.Equal(t, KindCanceled, Kind(fmt.Errorf("%w: %w", ErrUpstream, context.Canceled)))
	assert.Equal(t, KindUpstream, Kind(fmt.Errorf("%w: %w", ErrUpstream, context.DeadlineExceeded)))
	assert.Equal(t, KindUnknownRegion, Kind(ErrUnknownRegion))
	assert.Equal(t, KindNoData, Kind(&SourceError{Source: "salinity", Err: ErrNoData}))
	assert.Equal(t, KindSchemaDrift, Kind(&SourceError{Source: "plastic", Err: ErrSchemaDrift}))
	assert.Equal(t, KindUpstream, Kind(&SourceError{Source: "plastic", Err: ErrUpstream}))
	assert.Equal(t, "plastic", Source(&SourceError{Source: "plastic", Err: ErrUpstream}))
	assert.Equal(t, "", Source(ErrNoData))
}
