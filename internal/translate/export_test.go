package translate

// Function exports for unit testing internal logic.
var (
	ParseDictionaryResponse = parseDictionaryResponse
	SplitHopKey             = splitHopKey
)
