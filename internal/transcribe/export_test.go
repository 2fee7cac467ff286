package transcribe

import "github.com/alnah/go-clipscribe/internal/storage"

// Exports for testing. These allow black-box tests to inject dependencies
// without modifying the public API.

// NewTestRemoteEngine creates a RemoteEngine with a mock audioTranscriber.
func NewTestRemoteEngine(client audioTranscriber, store *storage.Manager, opts ...RemoteOption) *RemoteEngine {
	return newRemoteEngine(client, store, opts...)
}

// Function exports for unit testing internal logic.
var (
	ClassifyError    = classifyError
	IsRetryableError = isRetryableError
	ParseWhisperJSON = parseWhisperJSON
)
