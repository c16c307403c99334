package todos

import (
	"encoding/json"
	"fmt"
	"time"
)

var limitDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// * LimitDate принимает RFC3339, время без зоны (UTC) или пустую строку как null
type LimitDate struct {
	Time *time.Time
}

func (d *LimitDate) UnmarshalJSON(b []byte) error {
	var raw *string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("limit_date must be a string: %w", err)
	}

	if raw == nil || *raw == "" {
		d.Time = nil
		return nil
	}

	for _, layout := range limitDateLayouts {
		if t, err := time.Parse(layout, *raw); err == nil {
			d.Time = &t
			return nil
		}
	}

	return fmt.Errorf("limit_date %q is not a valid datetime", *raw)
}
