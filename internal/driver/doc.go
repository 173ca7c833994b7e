/*
Package driver exposes a hierarchical filesystem over a flat object store.

Files and folders are addressed by identifiers. The root folder is "/",
folder identifiers end with "/" and a folder exists when a zero-length
marker object is stored under its identifier. Everything else is derived
from key prefixes: listing a folder lists the keys below its prefix, and
moving a folder copies and removes every key in its subtree.

# Usage

	backend, err := s3.NewBackend(ctx, cfg.Storage.Bucket, &cfg.Storage.S3)
	if err != nil {
		return err
	}
	d := driver.New(backend, cfg.DriverOptions(), driver.WithLogger(logger))
	if err := d.Initialize(ctx); err != nil {
		return err
	}

	id, err := d.CreateFolder(ctx, "reports", "/", false)
	files, err := d.FilesInFolder(ctx, id, 0, 0, true)

# Structural operations

RenameFolder, MoveFolderWithinStorage and CopyFolderWithinStorage return an
IdentifierMap pairing every old identifier with its new one. Object stores
have no atomic rename, so a failure halfway leaves the subtree split
between source and destination; the error then carries the code
OPERATION_PARTIAL and the returned map lists exactly the identifiers that
were moved.

# Caches

Existence checks and permission lookups are memoized for the lifetime of
the driver. Every mutation made through the driver invalidates the
affected entries; changes made to the bucket by other clients are not
observed.
*/
package driver
