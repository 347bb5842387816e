package registry

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

// kindAliases maps legacy kind names that carried a protocol suffix.
var kindAliases = map[string]sdk.Kind{
	"traditional_uci":  sdk.KindTraditional,
	"traditional_rest": sdk.KindTraditional,
	"neuronal_uci":     sdk.KindNeuronal,
	"neuronal_rest":    sdk.KindNeuronal,
}

// inferenceRule is one row of the kind inference table.
type inferenceRule struct {
	name  string
	kind  sdk.Kind
	match func(raw map[string]any) bool
}

// inferenceRules are evaluated in order; the first match wins.
var inferenceRules = []inferenceRule{
	{"provider or api_key", sdk.KindGenerative, func(raw map[string]any) bool {
		return has(raw, "provider") || has(raw, "api_key")
	}},
	{"model with sampling options", sdk.KindGenerative, func(raw map[string]any) bool {
		return has(raw, "model") && (has(raw, "temperature") || has(raw, "max_tokens"))
	}},
	{"protocol with weights or backend", sdk.KindNeuronal, func(raw map[string]any) bool {
		return has(raw, "protocol") && (has(raw, "weights") || has(raw, "backend"))
	}},
	{"protocol with nodes or time search", sdk.KindNeuronal, func(raw map[string]any) bool {
		mode := stringValue(raw, "search_mode")
		return has(raw, "protocol") && (mode == "nodes" || mode == "time")
	}},
	{"weights or backend", sdk.KindNeuronal, func(raw map[string]any) bool {
		return has(raw, "weights") || has(raw, "backend")
	}},
	{"command", sdk.KindTraditional, func(raw map[string]any) bool {
		return has(raw, "command")
	}},
	{"url with extract", sdk.KindTraditional, func(raw map[string]any) bool {
		return has(raw, "url") && has(raw, "extract")
	}},
	{"url posting to a model", sdk.KindGenerative, func(raw map[string]any) bool {
		return has(raw, "url") && strings.EqualFold(stringValue(raw, "method"), "POST") && has(raw, "model")
	}},
	{"url", sdk.KindTraditional, func(raw map[string]any) bool {
		return has(raw, "url")
	}},
}

// InferKind derives a kind from configuration keys alone. ok is false when no
// rule matched and the traditional default was used.
func InferKind(raw map[string]any) (kind sdk.Kind, rule string, ok bool) {
	for _, r := range inferenceRules {
		if r.match(raw) {
			return r.kind, r.name, true
		}
	}
	return sdk.KindTraditional, "default", false
}

// NormalizeKind resolves legacy aliases and lowercases the name.
func NormalizeKind(name string) sdk.Kind {
	name = strings.ToLower(strings.TrimSpace(name))
	if k, ok := kindAliases[name]; ok {
		return k
	}
	return sdk.Kind(name)
}

// explicitKind returns the declared kind, preferring kind over engine_type.
func explicitKind(raw map[string]any) string {
	for _, key := range []string{"kind", "engine_type"} {
		if v := stringValue(raw, key); v != "" {
			return v
		}
	}
	return ""
}

func has(raw map[string]any, key string) bool {
	_, ok := raw[key]
	return ok
}

func stringValue(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
