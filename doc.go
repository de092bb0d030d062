// Package mqttgo implements an MQTT 3.1.1 client protocol engine.
//
// The engine is a single-connection state machine: it frames and parses
// control packets over a bidirectional byte stream, drives the connection
// through its lifecycle (idle, connecting, connected, disconnected),
// multiplexes Connect/Publish/Subscribe/Unsubscribe/Disconnect requests
// against asynchronous server responses via packet-identifier correlation,
// maintains liveness with keep-alive pings and a server-response deadline,
// and surfaces asynchronous updates (received messages, connection state
// changes) on a single stream.
//
// The concrete byte transport is abstracted behind a Channel: this package
// ships a TCP implementation and a WebSocket implementation, and a caller
// can supply its own.
//
// # Quick start
//
//	client := mqttgo.Start(mqttgo.ConnectOptions{
//	    ClientID:      "sensor-1",
//	    KeepAlive:     30 * time.Second,
//	    ServerTimeout: 5 * time.Second,
//	}, mqttgo.TCPTransport{Host: "localhost", Port: 1883})
//	defer client.Disconnect()
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	sessionPresent, err := client.Connect(ctx)
//
//	err = client.Publish(ctx, mqttgo.PublishData{
//	    Message: mqttgo.MessageData{Topic: "sensors/temp", Payload: []byte("22.5")},
//	})
//
//	results, err := client.Subscribe(ctx, []mqttgo.SubscribeRequest{
//	    {Filter: "sensors/+", QoS: mqttgo.AtLeastOnce},
//	})
//
//	for update := range client.Updates() {
//	    switch u := update.(type) {
//	    case mqttgo.ReceivedMessage:
//	        fmt.Printf("%s: %s\n", u.Topic, u.Payload)
//	    case mqttgo.ConnectionStateChanged:
//	        fmt.Printf("state: %#v\n", u.State)
//	    }
//	}
//
// # Scope
//
// This revision forces a clean session on every connect and does not
// implement Will messages, username/password auth, or session persistence
// across restarts. QoS 1 and QoS 2 delivery state is tracked for the
// duration of one connection, but outbound resend on reconnect and
// client-side session persistence are left to the SessionStore hook, which
// defaults to a no-op.
package mqttgo
