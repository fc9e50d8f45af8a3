// Package hash provides the CRC32-Castagnoli checksum used by framed host
// encodings. The table is built once; hash/crc32 picks hardware
// instructions when the CPU has them.
package hash
