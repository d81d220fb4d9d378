package badger

import (
	"github.com/poiesic/docpipe/core"
)

// Key prefixes for different data types.
// Segments never contain "/", so it is a safe separator.
const (
	userPrefix    = "usr"
	projectPrefix = "prj"
	uploadPrefix  = "upl"
	ownerPrefix   = "uid"
	sep           = "/"
)

// makeUserKey generates a key for a user record.
// Format: usr/user
func makeUserKey(user string) []byte {
	return []byte(userPrefix + sep + user)
}

// makeProjectKey generates a key for a project record.
// Format: prj/user/project
func makeProjectKey(ns core.Namespace) []byte {
	return []byte(projectPrefix + sep + ns.User + sep + ns.Project)
}

// makeProjectScanPrefix generates the prefix shared by all of a user's projects.
// Format: prj/user/
func makeProjectScanPrefix(user string) []byte {
	return []byte(projectPrefix + sep + user + sep)
}

// makeUploadKey generates a key for an upload index entry.
// Format: upl/user/project/uploadID
func makeUploadKey(ns core.Namespace, id core.UploadID) []byte {
	return []byte(uploadPrefix + sep + ns.User + sep + ns.Project + sep + string(id))
}

// makeUploadScanPrefix generates the prefix shared by a namespace's uploads.
// Format: upl/user/project/
func makeUploadScanPrefix(ns core.Namespace) []byte {
	return []byte(uploadPrefix + sep + ns.User + sep + ns.Project + sep)
}

// makeUploadOwnerKey generates the reverse index key naming an upload's namespace.
// Format: uid/uploadID
func makeUploadOwnerKey(id core.UploadID) []byte {
	return []byte(ownerPrefix + sep + string(id))
}
