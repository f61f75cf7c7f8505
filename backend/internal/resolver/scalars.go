package resolver

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateTime is the DateTime scalar: RFC 3339 with nanoseconds, always UTC.
type DateTime struct {
	time.Time
}

func (DateTime) ImplementsGraphQLType(name string) bool {
	return name == "DateTime"
}

func (t *DateTime) UnmarshalGraphQL(input interface{}) error {
	switch v := input.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return fmt.Errorf("invalid DateTime %q: %w", v, err)
		}
		t.Time = parsed.UTC()
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	}
	return fmt.Errorf("wrong type for DateTime: %T", input)
}

func (t DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func dateTimeOf(v interface{}) DateTime {
	if t, ok := v.(time.Time); ok {
		return DateTime{t}
	}
	return DateTime{}
}
