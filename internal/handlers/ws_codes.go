package handlers

// Custom WebSocket close codes sent by the push socket.
const (
	BadSubprotocolError = 3000 // Client connected without the tourney subprotocol.
	SubscriberLagError  = 3004 // Subscriber fell too far behind and was dropped.
)
