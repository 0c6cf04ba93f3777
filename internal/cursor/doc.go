package cursor

// Package cursor persists the id of the last report that was successfully
// notified. The store holds exactly one identifier; everything else about a
// report is re-fetched from the feed.
//
// Two invariants matter here:
//   - Save is atomic: a crash mid-save leaves either the old or the new id,
//     never a truncated value.
//   - "absent" (first run) and "corrupt" are distinct conditions, because the
//     recovery action differs: absent is normal, corrupt must never be
//     silently overwritten.
