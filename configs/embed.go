// Package configs carries the default configuration documents shipped
// with depot: the storage-class registry, the shared template dictionary,
// and one datastore descriptor per supported backend. User documents are
// layered over these at load time.
package configs

import "embed"

// FS holds the embedded default documents.
//
//go:embed storageClasses.yaml templates.yaml datastores/*.yaml
var FS embed.FS

// Default document paths within FS.
const (
	StorageClassesPath = "storageClasses.yaml"
	TemplatesPath      = "templates.yaml"
	PosixDatastorePath = "datastores/posix.yaml"
	S3DatastorePath    = "datastores/s3.yaml"
	ChainDatastorePath = "datastores/chain.yaml"
)
