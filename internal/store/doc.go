// Package store persists datapoint states and metadata objects and fans out
// change notifications.
//
// The SQLite implementation keeps states and objects in STRICT tables with
// JSON-encoded values; subscribers receive StateEvents for explicitly
// subscribed ids and ObjectEvents for every metadata change. The MQTT Bridge
// connects the store to protocol bridges: unacknowledged writes go out on
// state topics, device confirmations come back on ack topics.
package store
