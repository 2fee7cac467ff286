package tools

// ParseMajorVersion exposes parseMajorVersion for black-box tests.
var ParseMajorVersion = parseMajorVersion
