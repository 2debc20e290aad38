// Package assetviewer exports content-addressed game assets into a readable
// directory tree.
//
// An asset store is a directory with two children:
//   - indexes/<version>.json: a manifest mapping logical names to objects
//   - objects/<hh>/<hash>: object content, fanned out by the first two hash characters
//
// A manifest has the form
//
//	{"objects": {"minecraft/lang/en_us.json": {"hash": "<hex>", "size": 1234}, ...}}
//
// and unknown members are ignored at every level.
//
// # Quick Start
//
// Export a version into a directory:
//
//	store, err := assetviewer.ResolveStore(filepath.Join(home, ".minecraft"))
//	if err != nil {
//	    return err
//	}
//	res, err := assetviewer.NewExporter(store,
//	    assetviewer.WithLogger(logger),
//	).Export(ctx, "1.20", "out/1.20")
//	if err != nil {
//	    return err // manifest could not be loaded; nothing was copied
//	}
//	for _, f := range res.Failures {
//	    fmt.Println(f.LogicalName, f.Err)
//	}
//
// # Failures
//
// A manifest that cannot be read or parsed is fatal and reported as a
// [*ManifestError]. Everything else is per entry: malformed records and
// unsafe logical names ([KindEntry]) and filesystem errors such as a
// missing object ([KindIO]) are collected in [Result.Failures] while the
// remaining entries are still exported.
//
// # Archives
//
// [WithArchive] writes the export as a zstd-compressed tar stream instead of
// a directory tree.
package assetviewer
