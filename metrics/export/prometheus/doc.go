// Package prometheus renders tendergate counters in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [tendergate.Engine] and exposes an
// [http.Handler] for the embedder to mount. Counter names are prefixed
// tendergate_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
