// Package protocol owns the scene wire contract.
//
// Ownership boundary:
// - wire types for the envelope, geometry blocks, and scene nodes
// - the error taxonomy shared by every decode stage
// - envelope/ (marker strip, repair, parse) and buffer/ (hex/b64 + dtype) primitives
package protocol
