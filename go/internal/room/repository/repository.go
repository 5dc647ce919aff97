// Package repository persists rooms, participants, bids and the room outbox.
//
// Every write to an open room is a check-and-set on the room's version, so
// concurrent joins and draws serialise without holding locks across the
// matching computation.
package repository

import "time"

var timeNow = time.Now
