// Package quarantine decides whether a processed collection must be held for
// review and, when it must, publishes a quarantine message keyed by a fresh
// resume token.
//
// Publishing is delegated to a Publisher that checkpoints the run and queues
// the message atomically. The reviewer is then notified on a best-effort
// basis. A run leaves quarantine only through an explicit resume carrying
// the token and an action.
package quarantine
