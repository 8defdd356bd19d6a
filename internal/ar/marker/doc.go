// Package marker runs optical marker recognition on camera frames and
// resolves the first recognised marker to a world anchor.
//
// The Pipeline owns the detection latch: once a marker has been resolved
// to a world position, every later frame is ignored until Reset. The
// latch is plain state; callers must serialise ProcessFrame and Reset on
// one goroutine.
package marker
