package ir

// RuntimeVersion identifies the schema shape emitted by this compiler.
// Bump when RuntimeSchema's JSON shape changes in a way a downstream code
// generator would need to know about.
const RuntimeVersion = "fluxc-runtime-schema/v1"
