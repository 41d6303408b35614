package docker

import (
	"time"

	"github.com/shinji-kodama/layerpack/internal/model"
)

// Label key constants for the builder containers layerpack creates.
// Labels let interrupted builds be identified and reaped on the next
// run, and make `docker ps -a` output attributable to this tool.
//
// All keys share the "layerpack." prefix to avoid collisions with
// labels set by other tools.
const (
	// LabelPrefix is the common prefix for all layerpack labels.
	LabelPrefix = "layerpack."

	// LabelManagedBy identifies containers created by layerpack.
	// Key: "layerpack.managed-by", Value: always "layerpack".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelLayer stores the layer name the builder was installing for.
	LabelLayer = LabelPrefix + "layer"

	// LabelRuntime stores the runtime whose SAM build image is running.
	LabelRuntime = LabelPrefix + "runtime"

	// LabelCreatedAt stores the RFC3339 timestamp of builder creation.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "layerpack"

// BuildLabels constructs the label map applied to a builder container.
func BuildLabels(layerName string, rt model.Runtime) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelLayer:     layerName,
		LabelRuntime:   rt.String(),
		LabelCreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// ManagedFilterArg returns the label filter expression that matches
// containers created by layerpack, for use with the Docker API's
// container listing endpoint.
func ManagedFilterArg() string {
	return LabelManagedBy + "=" + ManagedByValue
}
