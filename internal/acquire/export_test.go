package acquire

// Classify exposes classify for black-box tests.
var Classify = classify
