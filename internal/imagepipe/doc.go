// Package imagepipe validates untrusted image bytes and re-encodes them into
// a fixed-size avatar.
//
// Validation reads only headers: format, dimensions, and the alpha and
// animation flags. Optimization center-crops to the requested box and
// encodes, lowering quality in fixed steps until the result fits the size
// budget or the quality floor is reached.
package imagepipe
