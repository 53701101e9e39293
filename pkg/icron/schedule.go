package icron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Standard five-field parser, the same one cron.New() uses by default.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type TriggerInfo struct {
	Expression    string        `json:"expression"`
	Next          time.Time     `json:"next"`
	Last          time.Time     `json:"last,omitempty"`
	TimeUntilNext time.Duration `json:"time_until_next"`
	TimeSinceLast time.Duration `json:"time_since_last,omitempty"`
}

func Validate(cronExpr string) error {
	if _, err := parser.Parse(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// GetTriggerInfo reports the next activation after refTime and the latest one at
// or before it, searching back at most one week.
func GetTriggerInfo(cronExpr string, refTime time.Time) (*TriggerInfo, error) {
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	info := &TriggerInfo{
		Expression: cronExpr,
		Next:       schedule.Next(refTime),
	}
	info.TimeUntilNext = info.Next.Sub(refTime)

	for step := time.Minute; step <= 7*24*time.Hour; step *= 2 {
		candidate := schedule.Next(refTime.Add(-step))
		if candidate.After(refTime) {
			continue
		}
		// walk forward to the latest activation not after refTime
		for {
			following := schedule.Next(candidate)
			if following.After(refTime) {
				break
			}
			candidate = following
		}
		info.Last = candidate
		info.TimeSinceLast = refTime.Sub(candidate)
		break
	}

	return info, nil
}
