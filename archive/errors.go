package archive

import "errors"

// ErrManifestMismatch is returned by Verify/Extract when a file's recomputed
// SHA-256 disagrees with what manifest.json recorded.
var ErrManifestMismatch = errors.New("archive: file content does not match manifest checksum")

// ErrPathTraversal is returned by Extract when a zip entry's resolved path
// would escape the target directory.
var ErrPathTraversal = errors.New("archive: zip entry resolves outside target directory")
