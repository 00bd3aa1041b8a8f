// Package services implements the business logic between the HTTP
// handlers and the dataset store.
//
// CotService owns every dataset operation: reading and filtering the
// current positions and history, replacing a dataset from text, an upload
// or a watched file, and producing analytics and narrative commentary.
// Each replacement is persisted, appended to the import log, counted in
// the metrics and announced to websocket clients.
//
// HealthService reports liveness, readiness and version information.
//
// Handlers map the sentinel errors of this package to HTTP responses:
//
//	records, err := svc.Positions(ctx, services.PositionsQuery{Focus: true})
//	if errors.Is(err, services.ErrDatasetNotFound) {
//	    // 404
//	}
package services
