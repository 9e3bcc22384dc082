// Package barcode wraps the gozxing codec behind small Encoder and Decoder
// interfaces and defines the shared vocabulary of the module: symbology
// formats, the immutable symbol Matrix produced by an encoder, decoded
// Results and the error taxonomy used by generation and capture.
//
// The symbology algorithms themselves (finder patterns, Reed-Solomon,
// checksums) live entirely inside gozxing.
package barcode
