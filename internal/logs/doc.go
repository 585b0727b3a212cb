// Package logs reads the plansync log file for the `plansync logs` command.
//
// Tail returns the last N lines or everything after a byte offset, and in
// follow mode polls until new lines arrive or the wait elapses. Filter narrows
// the lines to one order, run, or minimum level. JSON lines are matched by
// their fields; console lines fall back to key=value matching.
package logs
