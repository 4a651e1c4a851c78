// Package ui provides helpers for presenting process execution to console users.
//
// ConsoleCommandEventLogger turns lifecycle events into concise messages,
// RecordRenderer mirrors captured process lines to the terminal as they are
// observed, and ExitReport serializes a final exit state as YAML or JSON.
package ui
