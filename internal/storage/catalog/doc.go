// Package catalog keeps artifact metadata in an embedded Badger store
// under the snapshot home.
//
// Records are JSON documents keyed by artifact/<name>. The catalog is
// advisory: the artifact files are the source of truth, and a nil or
// unavailable *Catalog behaves like an empty one.
package catalog
