// Package training owns the client-side lifecycle of a chat training
// session: one trainee conversing with an AI-simulated customer under a
// scenario module.
//
// A [Session] holds every attempt ([Version]) made under one chat id. The
// [Engine] mediates all state transitions against the remote chat API and
// keeps the local copy consistent: operations never mutate their input
// session, they return an updated copy, so a failed call can never leave a
// half-updated session behind.
//
// # Concurrency
//
// Initialize collapses concurrent calls for the same agent/user pair into a
// single remote create. SendMessage rejects overlapping sends for the same
// chat, since the backend persists messages per chat in arrival order.
// Sessions themselves are owned by one caller and are not goroutine-safe.
package training
