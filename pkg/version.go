package voxlog

// Version is the current voxlog release.
const Version = "0.1.0"
