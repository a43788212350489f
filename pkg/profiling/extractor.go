package profiling

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/lakeprofiler/pkg/lakehouse"
	"github.com/ekaya-inc/lakeprofiler/pkg/models"
	"github.com/ekaya-inc/lakeprofiler/pkg/report"
)

// Statistics property keys the remote engine writes into table metadata
// after an ANALYZE run. Reading them is brittle by nature: the keys are an
// implementation detail of the engine and values may be absent or corrupt.
const (
	numRowsKey        = "spark.sql.statistics.numRows"
	totalSizeKey      = "spark.sql.statistics.totalSize"
	colStatsKeyPrefix = "spark.sql.statistics.colStats."
)

// profileExtractor maps a table's flat property bag into a TableProfile.
type profileExtractor struct {
	report *report.ProfilingReport
	logger *zap.Logger
}

func newProfileExtractor(rep *report.ProfilingReport, logger *zap.Logger) *profileExtractor {
	return &profileExtractor{report: rep, logger: logger}
}

// Build reads table-level statistics and, when includeColumns is set, one
// ColumnProfile per declared column. NumColumns always reflects the declared
// column list regardless of includeColumns.
func (e *profileExtractor) Build(info *lakehouse.TableInfo, includeColumns bool) *models.TableProfile {
	names := info.ColumnNames()
	profile := &models.TableProfile{
		NumRows:    e.parseOptionalInt64(info, numRowsKey),
		TotalSize:  e.parseOptionalInt64(info, totalSizeKey),
		NumColumns: len(names),
	}
	if includeColumns {
		profile.ColumnProfiles = make([]models.ColumnProfile, 0, len(names))
		for _, name := range names {
			profile.ColumnProfiles = append(profile.ColumnProfiles, e.buildColumnProfile(info, name))
		}
	}
	return profile
}

func (e *profileExtractor) buildColumnProfile(info *lakehouse.TableInfo, column string) models.ColumnProfile {
	prefix := colStatsKeyPrefix + column + "."
	return models.ColumnProfile{
		Name:          column,
		NullCount:     e.parseOptionalInt64(info, prefix+"nullCount"),
		DistinctCount: e.parseOptionalInt64(info, prefix+"distinctCount"),
		Min:           propertyValue(info, prefix+"min"),
		Max:           propertyValue(info, prefix+"max"),
		AvgLen:        propertyValue(info, prefix+"avgLen"),
		MaxLen:        propertyValue(info, prefix+"maxLen"),
		Version:       propertyValue(info, prefix+"version"),
	}
}

// propertyValue passes a property through as an opaque optional string,
// preserving the remote system's own formatting verbatim.
func propertyValue(info *lakehouse.TableInfo, key string) *string {
	value, ok := info.Properties[key]
	if !ok {
		return nil
	}
	return &value
}

// parseOptionalInt64 reads an integer statistic defensively: an absent key
// yields nil, and a present but unparseable value yields nil and counts a
// parse failure instead of raising.
func (e *profileExtractor) parseOptionalInt64(info *lakehouse.TableInfo, key string) *int64 {
	value, ok := info.Properties[key]
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		e.logger.Warn("failed to parse integer statistic",
			zap.String("table", info.Name),
			zap.String("key", key),
			zap.String("value", value))
		e.report.IncNumericParseFailure()
		return nil
	}
	return &parsed
}
