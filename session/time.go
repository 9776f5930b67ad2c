// ABOUTME: Wall-clock time source, overridable by tests for deterministic timestamps.
package session

import "time"

func defaultNow() time.Time { return time.Now().UTC() }
