// Package crc32c computes the Castagnoli CRC32 checksum and applies the
// "masked" transform record-log and sorted-table blocks store on disk, so
// that a block of all-zero bytes (e.g. preallocated slack) does not produce
// a valid checksum for one particular value.
package crc32c

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// Checksum returns the raw (unmasked) CRC32C of data.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, table)
}

// Extend incrementally folds more bytes into an existing raw CRC32C value.
func Extend(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, table, data)
}

// Mask applies the on-disk masking transform: ((c >> 15) | (c << 17)) + 0xa282ead8.
// Masking avoids a collision between the checksum of a payload that happens
// to look like a valid CRC and a run of zero bytes.
func Mask(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + 0xa282ead8
}

// Unmask reverses Mask.
func Unmask(masked uint32) uint32 {
	rot := masked - 0xa282ead8
	return (rot << 15) | (rot >> 17)
}
