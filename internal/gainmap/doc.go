// Package gainmap implements the UltraHDR JPEG/R container: a base SDR JPEG
// followed by a gain map JPEG, linked by MPF and described by XMP and
// ISO 21496-1 metadata.
//
// Decoding and encoding go through handle types (Decoder, Encoder) that are
// configured with setters, run once, and must be released by the caller.
// Decode and encode errors are reported as *Error values carrying a code and
// a human readable detail.
package gainmap
