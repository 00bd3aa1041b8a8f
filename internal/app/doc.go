// Package app wires configuration, stores, services and HTTP routes into a
// runnable cotpulse server.
//
// New builds every component but starts nothing. Run listens on the
// configured address and supervises the websocket hub, the optional import
// directory watcher and the HTTP server in one errgroup; cancelling the
// context passed to Run shuts the server down gracefully and closes the
// import log.
//
//	application, err := app.New(ctx, cfg, paths, logger)
//	if err != nil {
//		return err
//	}
//	return application.Run(ctx)
package app
