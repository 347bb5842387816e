package registry

import (
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

// Classification is one row of the classification matrix.
type Classification struct {
	Name           string             `json:"name"`
	Kind           sdk.Kind           `json:"kind"`
	Origin         sdk.Origin         `json:"origin"`
	ValidationMode sdk.ValidationMode `json:"validation_mode"`
	Protocol       string             `json:"protocol"`
}

// Classify describes an engine along its classification dimensions.
func Classify(e sdk.Engine) Classification {
	d := e.Descriptor()
	return Classification{
		Name:           d.Name,
		Kind:           d.Kind,
		Origin:         d.Origin,
		ValidationMode: d.ValidationMode,
		Protocol:       d.Protocol,
	}
}

// Matrix classifies every engine, ordered by name.
func Matrix(engines map[string]sdk.Engine) []Classification {
	rows := make([]Classification, 0, len(engines))
	for _, name := range sortedKeys(engines) {
		rows = append(rows, Classify(engines[name]))
	}
	return rows
}

// FilterByKind returns the engines of one kind.
func FilterByKind(engines map[string]sdk.Engine, kind sdk.Kind) map[string]sdk.Engine {
	return filter(engines, func(d sdk.Descriptor) bool { return d.Kind == kind })
}

// FilterByOrigin returns the engines of one origin.
func FilterByOrigin(engines map[string]sdk.Engine, origin sdk.Origin) map[string]sdk.Engine {
	return filter(engines, func(d sdk.Descriptor) bool { return d.Origin == origin })
}

// FilterByProtocol returns the engines speaking the named protocol.
func FilterByProtocol(engines map[string]sdk.Engine, protocol string) map[string]sdk.Engine {
	return filter(engines, func(d sdk.Descriptor) bool { return d.Protocol == protocol })
}

func filter(engines map[string]sdk.Engine, keep func(sdk.Descriptor) bool) map[string]sdk.Engine {
	out := make(map[string]sdk.Engine)
	for name, e := range engines {
		if keep(e.Descriptor()) {
			out[name] = e
		}
	}
	return out
}

// Names returns the sorted names of a set of engines.
func Names(engines map[string]sdk.Engine) []string {
	return sortedKeys(engines)
}
