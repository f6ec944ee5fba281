package publisher

// Publisher delivers scraped records to downstream consumers
type Publisher interface {
	// Publish appends one serialized record to the stream of the given spider
	Publish(spider string, record []byte) error

	// TrimStreams caps every spider stream at the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
