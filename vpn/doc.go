// Package vpn provides WireSock connection management for WireSock Manager.
//
// The package is organized around three main types:
//
//   - ProfileStore: persists profile name to config file mappings and the
//     settings record (client binary, default profile, autostart, language)
//   - Supervisor: owns the single client process and the connection phase
//   - Controller: executes Connect, Disconnect and Quit commands sent by
//     front-ends
//
// # Connection Flow
//
//  1. A front-end sends ConnectCommand(name) to the Controller
//  2. The Supervisor resolves the profile and publishes Connecting
//  3. It starts "<binary> run -config <file>" and streams its output
//  4. After the grace interval it publishes Connected, or Failed followed
//     by Disconnected if the client already exited
//  5. Disconnect, or the client exiting on its own, ends in Disconnected
//
// # Events
//
// Subscribers receive every state transition in the order it happened.
// Output lines share the same stream and may be dropped for a subscriber
// that falls far behind; state events never are.
//
// # Thread Safety
//
// ProfileStore, Supervisor and Controller are safe for concurrent use.
package vpn
