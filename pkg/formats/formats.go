// Package formats provides codecs for heightmap and brush file formats.
//
// R16 is a headerless raw heightmap: one little-endian uint16 per sample,
// row-major, with 0 and 65535 mapping to heights 0 and 1. TGA decoding covers
// the uncompressed and RLE true-color and grayscale variants used for brushes.
package formats
