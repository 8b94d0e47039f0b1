// Package feedsync synchronizes partner data feeds from an object store into a
// local staging area.
//
// A synchronization cycle walks through these phases:
//
//  1. DiscoverSchema downloads the feed description, parses it into a schema
//     tree and merges schema version 1.0 into every tracked entity.
//  2. IndexManifests lists the manifest objects and orders them by the
//     timestamp embedded in their keys.
//  3. LoadManifest reads one manifest and assigns its rows to entities.
//  4. DownloadEntity (or DownloadAll) streams each entity's files into
//     <local_path>/<entity id>/ and records parse hints on the entity.
//
// RunCycle runs all phases for the oldest manifest that has not been processed.
//
// # Basic Usage
//
//	cfg, err := config.LoadFile(osfs.New("/etc/feedsync"), "feedsync.cue")
//	if err != nil {
//	    return err
//	}
//
//	client, err := feedsync.New(ctx, cfg, feedsync.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//
//	result, err := client.RunCycle(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(result.RunID, len(result.Downloads))
//
// Operations called out of phase order fail with errors.ErrInvalidState.
package feedsync
