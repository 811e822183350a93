// Package peakflow parses the USGS peak streamflow archive (tab-delimited
// RDB format) and derives historical flood events from annual peaks. The
// archive reaches back 80+ years for most Illinois River gauges and is the
// ground truth for flood history.
package peakflow

import (
	"strconv"
	"strings"
	"time"

	"github.com/riverwatch/riverwatch/internal/analysis"
	"github.com/riverwatch/riverwatch/internal/ingest"
	"github.com/riverwatch/riverwatch/internal/station"
)

// ProviderName identifies this feed.
const ProviderName = "peakflow"

// Record is one annual peak from the RDB archive. Older records often lack
// a crest time and sometimes the primary gage height.
type Record struct {
	SiteCode             string
	PeakDate             time.Time
	PeakTime             *string // "HH:MM", absent for many older records
	PeakDischargeCfs     *float64
	GageHeightFt         *float64
	AlternateGageHtFt    *float64
	QualificationCodes   []string
	GageHtQualifications []string
}

// ParseRDB parses a peak streamflow RDB body. Comment lines start with '#';
// the first data line is the column header, the second the column format
// descriptors. Columns are located by name so upstream column reordering
// does not break parsing. Rows missing required fields are skipped.
func ParseRDB(body string) ([]Record, error) {
	var dataLines []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		dataLines = append(dataLines, line)
	}
	if len(dataLines) < 2 {
		return nil, &ingest.ParseError{Feed: ProviderName, Detail: "missing header or format line"}
	}

	columns := make(map[string]int)
	for i, name := range strings.Split(dataLines[0], "\t") {
		columns[name] = i
	}
	siteCol, ok := columns["site_no"]
	if !ok {
		return nil, &ingest.ParseError{Feed: ProviderName, Detail: "missing site_no column"}
	}
	dateCol, ok := columns["peak_dt"]
	if !ok {
		return nil, &ingest.ParseError{Feed: ProviderName, Detail: "missing peak_dt column"}
	}

	var records []Record
	for _, line := range dataLines[2:] { // [1] is the format descriptor row
		fields := strings.Split(line, "\t")
		if siteCol >= len(fields) || dateCol >= len(fields) {
			continue
		}

		peakDate, err := time.Parse("2006-01-02", fields[dateCol])
		if err != nil {
			continue
		}

		record := Record{
			SiteCode: fields[siteCol],
			PeakDate: peakDate.UTC(),
		}

		if s := field(fields, columns, "peak_tm"); s != "" {
			record.PeakTime = &s
		}
		record.PeakDischargeCfs = numericField(fields, columns, "peak_va")
		record.GageHeightFt = numericField(fields, columns, "gage_ht")
		record.AlternateGageHtFt = numericField(fields, columns, "ag_gage_ht")
		record.QualificationCodes = codeField(fields, columns, "peak_cd")
		record.GageHtQualifications = codeField(fields, columns, "gage_ht_cd")

		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, ingest.ErrNoData
	}
	return records, nil
}

func field(fields []string, columns map[string]int, name string) string {
	idx, ok := columns[name]
	if !ok || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

func numericField(fields []string, columns map[string]int, name string) *float64 {
	s := field(fields, columns, name)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func codeField(fields []string, columns map[string]int, name string) []string {
	s := field(fields, columns, name)
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// CrestTime resolves the crest instant for a record. Records without a
// recorded time default to noon UTC, the long-standing convention for
// older archive entries.
func (r Record) CrestTime() time.Time {
	hour, minute := 12, 0
	if r.PeakTime != nil {
		if t, err := time.Parse("15:04", *r.PeakTime); err == nil {
			hour, minute = t.Hour(), t.Minute()
		}
	}
	return time.Date(r.PeakDate.Year(), r.PeakDate.Month(), r.PeakDate.Day(), hour, minute, 0, 0, time.UTC)
}

// PeakStage resolves the stage for event derivation: the primary gage
// height when present, otherwise the alternate. Reports false when neither
// exists.
func (r Record) PeakStage() (float64, bool) {
	if r.GageHeightFt != nil {
		return *r.GageHeightFt, true
	}
	if r.AlternateGageHtFt != nil {
		return *r.AlternateGageHtFt, true
	}
	return 0, false
}

// DeriveFloodEvents compares each annual peak against the station's flood
// thresholds and emits one event per peak that reached flood stage. Peaks
// with no stage data, and peaks below flood stage, are skipped.
func DeriveFloodEvents(records []Record, thresholds station.Thresholds) []analysis.FloodEvent {
	var events []analysis.FloodEvent
	for _, record := range records {
		peakStage, ok := record.PeakStage()
		if !ok {
			continue
		}

		severity := thresholds.Classify(peakStage)
		if severity == station.SeverityNone {
			continue
		}

		events = append(events, analysis.FloodEvent{
			SiteCode:    record.SiteCode,
			CrestTime:   record.CrestTime(),
			PeakStageFt: peakStage,
			Severity:    severity,
		})
	}
	return events
}
