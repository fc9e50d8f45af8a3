// Package filehost keeps each segkit buffer in its own memory-mapped file.
//
// Files are named <base58 key>.seg inside one directory. Persist copies the
// buffer into the shared mapping and msyncs it; Resize truncates the file
// and maps it again. Only unix platforms are supported.
package filehost
