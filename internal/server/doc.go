// Package server implements the HTTP and WebSocket transport for the chat relay.
//
// The implementation is organized into specialized files for configuration,
// origin checks, the WebSocket stream adapter, routing, and HTTP handlers.
// All session and routing logic lives in package chat; this package only
// moves frames between the network and a chat.Service.
package server
