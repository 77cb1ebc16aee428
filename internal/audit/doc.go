// Package audit records every service command grayhub submits to the hub
// together with the hub's answer, in the command_log SQLite table.
//
// Recorder sits in front of the hub client as the actuators' Submitter:
// it forwards the command, stores a "submitted" row, and completes the row
// when the result arrives. Writes go through one goroutine so SQLite sees
// a single writer and a slow disk never delays an actuator.
package audit
