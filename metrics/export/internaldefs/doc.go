// Package internaldefs holds the shared counter definitions used by the
// exporter packages. It exists so the Prometheus and OTel exporters
// render the exact same metric names and help strings without either
// importing the other.
package internaldefs
