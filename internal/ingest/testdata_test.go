package ingest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lox/marinedash/internal/models"
)

var kst = time.FixedZone("KST", 9*60*60)

const oceanFixture = `Entity,Code,Year,Mismanaged plastic waste (metric tons year-1),Mismanaged waste emitted to the ocean (metric tons year-1)
South Korea,KOR,2010,1200000,300
South Korea,KOR,2019,1500000,500
China,CHN,2019,8800000,1000
Japan,JPN,2019,150000,200
`

const wasteFixture = `Entity,Code,Year,"Plastic waste generation (tonnes, total)"
South Korea,KOR,2010,5000000
China,CHN,2010,59000000
Japan,JPN,2010,7000000
`

func marineFixture(samples int) string {
	var times, temps, waves []string
	for i := 0; i < samples; i++ {
		times = append(times, fmt.Sprintf(`"2026-10-%02dT%02d:00"`, 1+i/24, i%24))
		temps = append(temps, fmt.Sprintf("%.3f", 15+float64(i)*0.125))
		waves = append(waves, fmt.Sprintf("%.2f", 0.5+float64(i)*0.01))
	}
	return fmt.Sprintf(`{"hourly":{"time":[%s],"sea_surface_temperature":[%s],"wave_height":[%s]}}`,
		strings.Join(times, ","), strings.Join(temps, ","), strings.Join(waves, ","))
}

func griddapFixture(values ...string) string {
	rows := make([]string, 0, len(values))
	for i, v := range values {
		rows = append(rows, fmt.Sprintf(`["2026-09-%02dT00:00:00Z", 37.5, 130.8, %s]`, i+1, v))
	}
	return fmt.Sprintf(`{"table":{"columnNames":["time","latitude","longitude","value"],"rows":[%s]}}`, strings.Join(rows, ","))
}

// upstream is a fake for every source the aggregator talks to. Individual
// paths can be overridden to return an error status.
type upstream struct {
	*httptest.Server
	failPath string
	hits     atomic.Int64
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		if r.URL.Path == u.failPath {
			http.Error(w, "<html><body><h1>Service Unavailable</h1></body></html>", http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/marine":
			fmt.Fprint(w, marineFixture(10))
		case "/salinity":
			fmt.Fprint(w, griddapFixture("33.1234", `"NaN"`, "33.2"))
		case "/chlorophyll":
			fmt.Fprint(w, griddapFixture("0.4567", "0.5"))
		case "/ocean.csv":
			fmt.Fprint(w, oceanFixture)
		case "/waste.csv":
			fmt.Fprint(w, wasteFixture)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) endpoints() Endpoints {
	return Endpoints{
		MarineWeather: u.URL + "/marine",
		Salinity:      u.URL + "/salinity",
		Chlorophyll:   u.URL + "/chlorophyll",
		PlasticOcean:  u.URL + "/ocean.csv",
		PlasticWaste:  u.URL + "/waste.csv",
	}
}

func testFetcher(retries uint64) *fetcher {
	return newFetcher(&http.Client{Timeout: 5 * time.Second}, retries, zerolog.Nop())
}

func labels(history []models.HistoricalPoint) []string {
	out := make([]string, len(history))
	for i, p := range history {
		out[i] = p.Label
	}
	return out
}
