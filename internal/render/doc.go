// Package render paints symbol matrices into pixel buffers and writes them
// out as PNG, BMP or JPEG images.
package render
