// Package uhdrframe puts a photo on a white presentation canvas with a
// footer showing exposure settings, capture date, camera, lens and a brand
// logo.
//
// Plain JPEG inputs produce a plain JPEG. UltraHDR (JPEG/R) inputs are
// composited twice, once on the 8-bit SDR base and once on the linear HDR
// rendition, and are written back as a gain map container so the framed
// photo keeps its highlights on HDR displays.
package uhdrframe
