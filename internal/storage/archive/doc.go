// Package archive packs a checkpoint working directory into a single
// compressed artifact and unpacks it again.
//
// The stream is a tar archive of the directory contents compressed with
// zstd (primary) or lz4 (secondary). Which compressor is used for new
// artifacts is decided once by New, which probes every configured
// compressor and fails when none of them works. Unpack accepts the
// .qsnap family of suffixes and identifies the compressor from the
// frame magic, so artifacts written by either compressor restore with
// any codec.
package archive
