// Package domain contains the core business entities and rules for the
// quorum memory engine. It has no dependencies on adapters or external
// services; everything here is plain data and validation.
package domain
