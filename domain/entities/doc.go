// Package entities holds the agent's domain types: message buffers, queued
// messages, topics and the hello announcement.
package entities
