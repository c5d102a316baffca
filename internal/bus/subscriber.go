package bus

// Message is one raw payload received from the bus.
type Message struct {
	Topic string
	Data  []byte
}

// Subscriber receives messages from the bus.
type Subscriber interface {
	// Subscribe delivers messages on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}
