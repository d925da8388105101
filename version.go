package seqio

// Version is the library version recorded in every split info
// descriptor, so cached data can be matched against the code that
// produced it.
const Version = "0.1.0"
