package telemetry

import "fmt"

// Dialect captures what differs between warehouse engines: the SQL flavour
// named in the model prompt, the table reference and the expressions used by
// the dashboard aggregation.
type Dialect struct {
	Backend string
	// Name is the SQL flavour as the model should know it.
	Name string
	// Table is the fully qualified telemetry table.
	Table string

	quoteTable func(string) string
	hourBucket func(col string) string
	jsonFloat  func(col, field string) string
	anyValue   func(col string) string
}

// DialectFor returns the dialect for a warehouse backend name. Unknown names
// fall back to BigQuery.
func DialectFor(backend, table string) Dialect {
	switch backend {
	case "clickhouse":
		return Dialect{
			Backend:    backend,
			Name:       "ClickHouse SQL",
			Table:      table,
			quoteTable: func(t string) string { return t },
			hourBucket: func(col string) string { return fmt.Sprintf("toStartOfHour(%s)", col) },
			jsonFloat: func(col, field string) string {
				return fmt.Sprintf("JSONExtractFloat(%s, '%s')", col, field)
			},
			anyValue: func(col string) string { return fmt.Sprintf("any(%s)", col) },
		}
	case "postgres":
		return Dialect{
			Backend:    backend,
			Name:       "PostgreSQL",
			Table:      table,
			quoteTable: func(t string) string { return t },
			hourBucket: func(col string) string { return fmt.Sprintf("date_trunc('hour', %s)", col) },
			jsonFloat: func(col, field string) string {
				return fmt.Sprintf("(%s::jsonb->>'%s')::float8", col, field)
			},
			anyValue: func(col string) string { return fmt.Sprintf("min(%s)", col) },
		}
	default:
		return Dialect{
			Backend:    "bigquery",
			Name:       "GoogleSQL",
			Table:      table,
			quoteTable: func(t string) string { return "`" + t + "`" },
			hourBucket: func(col string) string { return fmt.Sprintf("TIMESTAMP_TRUNC(%s, HOUR)", col) },
			jsonFloat: func(col, field string) string {
				return fmt.Sprintf("CAST(JSON_VALUE(%s, '$.%s') AS FLOAT64)", col, field)
			},
			anyValue: func(col string) string { return fmt.Sprintf("ANY_VALUE(%s)", col) },
		}
	}
}

// TableRef is the table as it must appear in a FROM clause.
func (d Dialect) TableRef() string {
	if d.quoteTable == nil {
		return d.Table
	}
	return d.quoteTable(d.Table)
}

func (d Dialect) sitesQuery() string {
	return fmt.Sprintf(`SELECT DISTINCT site_id
FROM %s
ORDER BY site_id`, d.TableRef())
}

// readingsQuery aggregates one site's readings by hour.
func (d Dialect) readingsQuery() string {
	return fmt.Sprintf(`SELECT
  %s AS hour_timestamp,
  AVG(temperature) AS avg_temp,
  SUM(occupancy) AS total_motion,
  AVG(humidity) AS avg_humidity,
  AVG(%s) AS avg_light,
  %s AS device_id,
  %s AS site_id
FROM %s
WHERE site_id = @siteId
  AND timestamp BETWEEN @from AND @to
GROUP BY hour_timestamp
ORDER BY hour_timestamp ASC`,
		d.hourBucket("timestamp"),
		d.jsonFloat("metadata", "light"),
		d.anyValue("device_id"),
		d.anyValue("site_id"),
		d.TableRef(),
	)
}
