// Package ar holds the shared data model of the spatial placement core:
// anchors and their kinds, camera frames and tracking state, interaction
// modes, scene nodes, and the contracts of the external collaborators
// (scene graph, model loader, tracking runtime).
//
// Sub-packages own one component each:
//
//	quality    tracking-quality text and crosshair colour
//	marker     per-frame marker recognition and the detection latch
//	anchors    anchor to scene-node synchronisation, anchor registry
//	placement  interaction mode and placed objects
//	status     auto-expiring status messages
//	session    session lifecycle and the serialized event loop
//
// Dependency rule: sub-packages may import ar, ar may not import them.
// session is the composition root and the only package that imports the
// other sub-packages.
package ar
