package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// EngineConfig holds the raw declarative configuration of one engine.
type EngineConfig struct {
	// Name is the engine name the configuration was declared under.
	Name string `json:"name"`

	// Raw contains the raw configuration map.
	Raw map[string]any `json:"raw"`
}

// NewEngineConfig creates a new engine configuration. The map is copied.
func NewEngineConfig(name string, raw map[string]any) EngineConfig {
	copied := make(map[string]any, len(raw)+1)
	for k, v := range raw {
		copied[k] = v
	}
	return EngineConfig{Name: name, Raw: copied}
}

// Get retrieves a configuration value by key.
func (c EngineConfig) Get(key string) any {
	return c.Raw[key]
}

// GetString retrieves a string configuration value.
func (c EngineConfig) GetString(key string) string {
	switch v := c.Raw[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case int, int64, float64, bool:
		return fmt.Sprint(v)
	}
	return ""
}

// GetInt retrieves an integer configuration value.
func (c EngineConfig) GetInt(key string) int {
	switch v := c.Raw[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return 0
}

// GetFloat retrieves a float configuration value.
func (c EngineConfig) GetFloat(key string) float64 {
	switch v := c.Raw[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return 0
}

// GetBool retrieves a boolean configuration value.
func (c EngineConfig) GetBool(key string) bool {
	switch v := c.Raw[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// GetDuration retrieves a duration configuration value.
// Strings are parsed with time.ParseDuration, bare numbers are seconds.
func (c EngineConfig) GetDuration(key string) time.Duration {
	switch v := c.Raw[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
	case int, int64, float64:
		return time.Duration(c.GetFloat(key) * float64(time.Second))
	}
	return 0
}

// GetStringSlice retrieves a string slice configuration value.
func (c EngineConfig) GetStringSlice(key string) []string {
	switch v := c.Raw[key].(type) {
	case []string:
		return v
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// GetMap retrieves a nested mapping configuration value.
func (c EngineConfig) GetMap(key string) map[string]any {
	switch v := c.Raw[key].(type) {
	case map[string]any:
		return v
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out
	}
	return nil
}

// Has checks if a configuration key exists.
func (c EngineConfig) Has(key string) bool {
	_, ok := c.Raw[key]
	return ok
}

// With returns a copy of the config with key set to value.
func (c EngineConfig) With(key string, value any) EngineConfig {
	out := NewEngineConfig(c.Name, c.Raw)
	out.Raw[key] = value
	return out
}

// Keys returns the configured keys.
func (c EngineConfig) Keys() []string {
	keys := make([]string, 0, len(c.Raw))
	for k := range c.Raw {
		keys = append(keys, k)
	}
	return keys
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode maps the raw configuration onto a typed struct using mapstructure
// tags and then checks its validate tags. Unknown keys are ignored so one
// raw map can feed several protocol configs.
func (c EngineConfig) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("build config decoder: %w", err)
	}
	if err := decoder.Decode(c.Raw); err != nil {
		return &ConfigError{Engine: c.Name, Message: "decode", Err: err}
	}

	if err := validate.Struct(out); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ConfigError{
				Engine:  c.Name,
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed %q check", fe.Tag()),
			}
		}
		return &ConfigError{Engine: c.Name, Err: err}
	}
	return nil
}

// secondsToDurationHook treats bare numbers as seconds when the target is a
// time.Duration.
func secondsToDurationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}
