package ingest

import (
	"encoding/json"

	"github.com/lox/marinedash/internal/models"
)

const (
	FlagTempOutOfRange        = "temp_out_of_range"
	FlagSalinityOutOfRange    = "salinity_out_of_range"
	FlagChlorophyllOutOfRange = "chlorophyll_out_of_range"
	FlagWaveHeightUnlikely    = "wave_height_unlikely"
	FlagPlasticOutOfRange     = "plastic_index_out_of_range"
	FlagNotFinite             = "not_finite"
	FlagEmptyHistory          = "empty_history"
)

// ValidateRecord returns soft quality flags for implausible values. It never
// rejects a record.
func ValidateRecord(rec *models.MarineRecord) []string {
	var flags []string

	if v := rec.Temperature.Current; v < -2 || v > 40 {
		flags = append(flags, FlagTempOutOfRange)
	}
	if v := rec.Salinity.Current; v < 0 || v > 45 {
		flags = append(flags, FlagSalinityOutOfRange)
	}
	if v := rec.Chlorophyll.Current; v < 0 || v > 100 {
		flags = append(flags, FlagChlorophyllOutOfRange)
	}
	if v := rec.WaveHeight.Current; v < 0 || v > 30 {
		flags = append(flags, FlagWaveHeightUnlikely)
	}
	if v := rec.PlasticIndex.Current; v < 0 || v > 1 {
		flags = append(flags, FlagPlasticOutOfRange)
	}

	for _, m := range models.Metrics() {
		s, _ := rec.Series(m)
		if !isFinite(s.Current) {
			flags = append(flags, FlagNotFinite+":"+string(m))
		}
		if len(s.History) == 0 {
			flags = append(flags, FlagEmptyHistory+":"+string(m))
		}
	}

	return flags
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
