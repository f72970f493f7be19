package marketdata

import (
	"github.com/polygon-io/client-go/rest/models"

	"github.com/derekmborges/algorithmic-trading/pkg/errors"
)

// Timespan is a compact interval notation, e.g. "1m", "5m", "1h", "1d".
type Timespan string

const (
	TimespanOneMinute      Timespan = "1m"
	TimespanFiveMinutes    Timespan = "5m"
	TimespanFifteenMinutes Timespan = "15m"
	TimespanThirtyMinutes  Timespan = "30m"
	TimespanOneHour        Timespan = "1h"
	TimespanFourHours      Timespan = "4h"
	TimespanOneDay         Timespan = "1d"
	TimespanOneWeek        Timespan = "1w"
)

// Multiplier returns the numeric part of the timespan.
func (t Timespan) Multiplier() int {
	switch t {
	case TimespanFiveMinutes:
		return 5
	case TimespanFifteenMinutes:
		return 15
	case TimespanThirtyMinutes:
		return 30
	case TimespanFourHours:
		return 4
	default:
		return 1
	}
}

// ToPolygonTimespan converts to the Polygon API unit.
func (t Timespan) ToPolygonTimespan() (models.Timespan, error) {
	switch t {
	case TimespanOneMinute, TimespanFiveMinutes, TimespanFifteenMinutes, TimespanThirtyMinutes:
		return models.Minute, nil
	case TimespanOneHour, TimespanFourHours:
		return models.Hour, nil
	case TimespanOneDay:
		return models.Day, nil
	case TimespanOneWeek:
		return models.Week, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported timespan: %s", t)
	}
}
