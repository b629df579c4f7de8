// # Go Client Package for Realtime Voice Sessions
//
// This repository provides a Go package for managing a real-time, two-way voice and event session between an application and the OpenAI Realtime API over WebRTC. It negotiates the peer connection, routes inbound data-channel events into a reactive session state, and executes function-call events against an application backend, reporting results back into the conversation.
package realtime
