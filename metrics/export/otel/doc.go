// Package otel bridges tendergate counters into an OpenTelemetry meter.
//
// [NewOTelExporter] registers observable counters on the provided meter;
// each collection cycle reads a fresh engine snapshot. Close unregisters
// the callback.
package otel
