package adapters

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"time"
)

// Event represents a single tracked occurrence.
//
// Events are values: once an Event has been handed to the queue it is never
// modified again. Properties only ever contain the normalized value set
// produced by NormalizeProperties, so Clone can copy them without reflection.
type Event struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Properties  map[string]any `json:"properties,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	SessionID   string         `json:"sessionId"`
	UserID      *string        `json:"userId"`
	DeviceID    string         `json:"deviceId"`
	NameTag     *string        `json:"nameTag,omitempty"`
	Environment string         `json:"environment,omitempty"`
	Platform    *Platform      `json:"platform,omitempty"`
}

// Platform describes the runtime that produced an event.
type Platform struct {
	Type       string `json:"type"`
	OS         string `json:"os,omitempty"`
	Arch       string `json:"arch,omitempty"`
	SDKVersion string `json:"sdkVersion,omitempty"`
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	out := e
	out.UserID = cloneString(e.UserID)
	out.NameTag = cloneString(e.NameTag)
	if e.Platform != nil {
		p := *e.Platform
		out.Platform = &p
	}
	if e.Properties != nil {
		out.Properties = cloneMap(e.Properties)
	}
	return out
}

// Identity is the persisted identity and session context attached to every
// event.
type Identity struct {
	UserID           *string        `json:"userId,omitempty"`
	NameTag          *string        `json:"nameTag,omitempty"`
	SessionID        string         `json:"sessionId"`
	DeviceID         string         `json:"deviceId"`
	SuperProperties  map[string]any `json:"superProperties,omitempty"`
	SessionStartedAt *time.Time     `json:"sessionStartedAt,omitempty"`
	LastActivity     time.Time      `json:"lastActivity"`
}

// Clone returns a deep copy of the identity.
func (i Identity) Clone() Identity {
	out := i
	out.UserID = cloneString(i.UserID)
	out.NameTag = cloneString(i.NameTag)
	if i.SessionStartedAt != nil {
		t := *i.SessionStartedAt
		out.SessionStartedAt = &t
	}
	if i.SuperProperties != nil {
		out.SuperProperties = cloneMap(i.SuperProperties)
	}
	return out
}

// InvalidPropertyError reports a property value outside the supported set.
type InvalidPropertyError struct {
	Key  string
	Type string
}

func (e *InvalidPropertyError) Error() string {
	return fmt.Sprintf("property %q has unsupported type %s", e.Key, e.Type)
}

// NormalizeProperties returns a deep copy of props restricted to the
// supported value set: strings, numbers, booleans, nil, time.Time, nested
// string-keyed maps and sequences. URLs are converted to their string form.
//
// Keys whose values cannot be represented are left out of the result and
// reported as *InvalidPropertyError. That includes NaN and infinite floats,
// and containers nested deeper than MaxPropertyDepth, which also catches
// self-referencing maps and slices.
func NormalizeProperties(props map[string]any) (map[string]any, []error) {
	if props == nil {
		return nil, nil
	}

	var errs []error
	out := make(map[string]any, len(props))
	for key, value := range props {
		normalized, ok := normalizeValue(value, 1)
		if !ok {
			errs = append(errs, &InvalidPropertyError{Key: key, Type: fmt.Sprintf("%T", value)})
			continue
		}
		out[key] = normalized
	}
	return out, errs
}

// MaxPropertyDepth is the deepest container nesting accepted in a property
// value.
const MaxPropertyDepth = 32

func normalizeValue(v any, depth int) (any, bool) {
	if depth > MaxPropertyDepth {
		return nil, false
	}

	switch val := v.(type) {
	case nil:
		return nil, true
	case string, bool, json.Number:
		return val, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return val, true
	case float32:
		return val, finite(float64(val))
	case float64:
		return val, finite(val)
	case time.Time:
		return val, true
	case *time.Time:
		if val == nil {
			return nil, true
		}
		return *val, true
	case url.URL:
		return val.String(), true
	case *url.URL:
		if val == nil {
			return nil, true
		}
		return val.String(), true
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			n, ok := normalizeValue(item, depth+1)
			if !ok {
				return nil, false
			}
			m[k] = n
		}
		return m, true
	case []any:
		s := make([]any, len(val))
		for i, item := range val {
			n, ok := normalizeValue(item, depth+1)
			if !ok {
				return nil, false
			}
			s[i] = n
		}
		return s, true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, true
		}
		return normalizeValue(rv.Elem().Interface(), depth+1)
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), finite(rv.Float())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, true
		}
		s := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			n, ok := normalizeValue(rv.Index(i).Interface(), depth+1)
			if !ok {
				return nil, false
			}
			s[i] = n
		}
		return s, true
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		if rv.IsNil() {
			return nil, true
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			n, ok := normalizeValue(iter.Value().Interface(), depth+1)
			if !ok {
				return nil, false
			}
			m[iter.Key().String()] = n
		}
		return m, true
	}
	return nil, false
}

// finite reports whether f can be encoded as a JSON number.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = cloneValue(item)
		}
		return s
	default:
		return val
	}
}
