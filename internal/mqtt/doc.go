// Package mqtt publishes Home Assistant MQTT discovery messages and
// periodic sensor state updates so a running agent appears as a native
// HA device with availability tracking. Operators who already run a
// broker get queries served, active sessions, token spend, and uptime
// on a dashboard without scraping the HTTP API.
//
// The publisher uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. On every
// (re-)connect it publishes retained discovery config payloads for
// each sensor entity and a birth message ("online") to the
// availability topic. A will message ensures the availability topic
// transitions to "offline" on unexpected disconnects.
//
// Token spend is accumulated from llm_response events on the event
// bus rather than by coupling this package to the agent loop.
package mqtt
