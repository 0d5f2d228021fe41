// Package mqtt provides the notification bus client for StateGate.
//
// State writes made through the REST API are announced on
// stategate/state/{id-with-slashes}; protocol bridges confirm applied
// values on stategate/ack/{id-with-slashes}. The delayed-response tracker
// consumes ack messages to complete "wait for acknowledgement" requests.
//
// # Features
//
//   - Automatic reconnection with exponential backoff
//   - Subscription restoration on reconnect
//   - Last Will and Testament for offline detection
//   - Panic recovery in message handlers
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	client.Subscribe(topics.AllAcks(), 1, func(topic string, payload []byte) error {
//	    id := mqtt.IDFromTopic(topic)
//	    ...
//	    return nil
//	})
package mqtt
