// Package websocket serves stream connections.
//
// A client connects to /ws/stream/{id}/ and must send
//
//	{"type":"authenticate","token":"<access token>"}
//
// before anything else is honored. On success the connection joins the
// stream's group in the Registry, subscribes to the bus for that stream and
// receives {"type":"authentication_success"}. From then on every bus event is
// written as {"message":"<text>"} and every {"message":"<text>"} the client
// sends is published to the bus (and comes back through it).
//
// A failed, missing or late authentication yields
// {"type":"authentication_failure"} followed by close code 4403.
package websocket
