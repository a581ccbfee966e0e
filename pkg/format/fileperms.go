package format

import "io/fs"

// File permission constants used when writing logs, snapshots and documents.
const (
	// DirUserGroupRead is for directories that should be readable by owner and group (rwxr-x---)
	DirUserGroupRead fs.FileMode = 0750

	// FilePublicRead is for files that are checked in, like pattern documents and snapshots (rw-r--r--)
	FilePublicRead fs.FileMode = 0644

	// FileUserReadWrite is for files only the owner should read, like logs (rw-------)
	FileUserReadWrite fs.FileMode = 0600
)
