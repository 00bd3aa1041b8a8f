// Package files owns everything the service keeps on disk outside the
// import log: the persisted positions and history datasets, the bundled
// default datasets used before anything was imported, discovery of files
// dropped into the imports directory, and the watcher that feeds those
// files back into the service.
//
//	store := files.NewDatasetStore(files.NewManager(paths), logger)
//	if err := store.Load(ctx); err != nil {
//	    return err
//	}
//	text := store.Get(domain.DatasetPositions)
package files
