// Package telemetry provides OpenTelemetry observability for Muster
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/cloud-shuttle/muster/pkg/types"
)

// Semantic convention keys for Muster-specific attributes
const (
	// Sheet attributes
	KeySheetID = "muster.sheet.id"
	KeyProject = "muster.project"

	// Task attributes
	KeyTaskRow   = "muster.task.row"
	KeyTaskDelta = "muster.task.delta"

	// Notification attributes
	KeySendKind  = "muster.send.kind"
	KeyPeerCount = "muster.shame.peer_count"

	// Error attributes
	KeyErrorCategory = "muster.error.category"
)

// Error categories
const (
	ErrorCategorySource    = "source"
	ErrorCategoryDelivery  = "delivery"
	ErrorCategoryDatabase  = "database"
	ErrorCategoryDirectory = "directory"
)

// TaskAttrs returns the span attributes identifying one task
func TaskAttrs(key types.TaskKey) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(KeySheetID, key.SheetID),
		attribute.String(KeyProject, key.Project),
		attribute.Int(KeyTaskRow, key.Row),
	}
}
