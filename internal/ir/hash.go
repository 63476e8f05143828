package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed schema hashing. The version
// suffix allows the hashing algorithm to change without colliding with
// hashes computed by an older compiler.
const (
	DomainSchema = "fluxc/runtime-schema/v1"
)

// hashWithDomain computes SHA-256 with domain separation: a null byte
// between the domain tag and the payload prevents ambiguity between a
// short domain concatenated with data and a longer domain with a prefix
// of that data.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SchemaHash computes a stable content hash for a compiled RuntimeSchema,
// used to stamp generated output and to detect accidental planner
// nondeterminism in golden tests.
func SchemaHash(schema *RuntimeSchema) (string, error) {
	canonical, err := schema.canonicalForm()
	if err != nil {
		return "", err
	}
	return hashWithDomain(DomainSchema, canonical), nil
}
