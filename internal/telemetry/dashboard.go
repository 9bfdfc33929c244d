package telemetry

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"time"

	"github.com/dainotech/beespace-demo/pkg/database"
)

// BatteryPlaceholder is reported until devices publish battery voltage.
const BatteryPlaceholder = 3.6

const unknownDevice = "UNKNOWN"

// SensorReading is one hourly aggregate for a site, shaped for the dashboard.
type SensorReading struct {
	Timestamp    string  `json:"timestamp"`
	ClientSiteID string  `json:"clientSiteId"`
	DevEUI       string  `json:"devEui"`
	Temperature  float64 `json:"temperature"`
	Humidity     float64 `json:"humidity"`
	Motion       float64 `json:"motion"`
	Light        float64 `json:"light"`
	Battery      float64 `json:"battery"`
}

// Sites lists the distinct site ids present in the telemetry table.
func (c *Client) Sites(ctx context.Context) ([]string, error) {
	rows, err := c.run(ctx, QueryTypeSites, c.dialect.sitesQuery(), nil, c.dashboardOptions())
	if err != nil {
		return nil, err
	}
	sites := make([]string, 0, len(rows))
	for _, row := range rows {
		if id := asString(row["site_id"]); id != "" {
			sites = append(sites, id)
		}
	}
	return sites, nil
}

// Readings aggregates a site's telemetry by hour within [from, to].
func (c *Client) Readings(ctx context.Context, siteID int64, from, to time.Time) ([]SensorReading, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("range end %s is before start %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	rows, err := c.run(ctx, QueryTypeReadings, c.dialect.readingsQuery(), map[string]any{
		"siteId": siteID,
		"from":   from.UTC(),
		"to":     to.UTC(),
	}, c.dashboardOptions())
	if err != nil {
		return nil, err
	}

	readings := make([]SensorReading, 0, len(rows))
	for _, row := range rows {
		readings = append(readings, readingFromRow(row, siteID))
	}
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp < readings[j].Timestamp
	})
	return readings, nil
}

func (c *Client) dashboardOptions() database.QueryOptions {
	return database.QueryOptions{MaxBytesBilled: c.limits.MaxBytesBilled}
}

func readingFromRow(row Row, siteID int64) SensorReading {
	site := asString(row["site_id"])
	if site == "" {
		site = strconv.FormatInt(siteID, 10)
	}
	device := asString(row["device_id"])
	if device == "" {
		device = unknownDevice
	}
	return SensorReading{
		Timestamp:    asString(row["hour_timestamp"]),
		ClientSiteID: site,
		DevEUI:       device,
		Temperature:  asFloat(row["avg_temp"]),
		Humidity:     asFloat(row["avg_humidity"]),
		Motion:       asFloat(row["total_motion"]),
		Light:        asFloat(row["avg_light"]),
		Battery:      BatteryPlaceholder,
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case uint64:
		return float64(t)
	case uint32:
		return float64(t)
	case *big.Rat:
		if t == nil {
			return 0
		}
		f, _ := t.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
