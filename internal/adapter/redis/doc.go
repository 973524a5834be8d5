// Package redis implements the cross-instance pieces of streamrelay on Redis:
// the pub/sub broadcast bus, presence aggregation, the instance registry and
// the refresh token blacklist.
//
// Key layout:
//
//	stream:<stream_id>        pub/sub channel carrying JSON domain.Event payloads
//	presence:<stream_id>      hash: instance ID -> local viewer count
//	instances                 hash: instance ID -> JSON heartbeat
//	revoked_token:<jti>       string with TTL until the token expires
package redis
