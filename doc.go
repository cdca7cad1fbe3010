// Package arbor is the windowing core of a desktop shell: a spatial scene
// graph, gesture recognition, workspace layouts, animated effects and a
// window manager that ties them to a compositor.
//
// # Quick start
//
// Build a [WindowManager] from a [Config], initialize it and run its loop.
// With no compositor option a [HeadlessCompositor] is used, which keeps
// client windows in memory:
//
//	wm, err := arbor.NewWindowManager(arbor.DefaultConfig())
//	if err != nil { ... }
//	if err := wm.Initialize(); err != nil { ... }
//	go wm.Run()
//	defer wm.Shutdown()
//
// To open a real desktop window, build the manager with an
// [EbitenCompositor] and hand it to [RunEbiten]:
//
//	comp := arbor.NewEbitenCompositor(arbor.Rect{Width: 1280, Height: 720})
//	wm, _ := arbor.NewWindowManager(cfg, arbor.WithCompositor(comp))
//	err := arbor.RunEbiten(wm, arbor.RunConfig{Title: "arbor"})
//
// [WindowManager.Serve] satisfies suture's Service interface, so the loop can
// also run under a supervisor.
//
// # Scene graph
//
// A [SceneGraph] owns every [SceneNode] in an arena keyed by [NodeID]. Nodes
// reference each other by id, never by pointer. Changing a node's transform
// or bounds marks it and its descendants dirty; [SceneGraph.Update]
// recomputes their cached global transforms and bounds and refreshes the
// spatial index used by [SceneGraph.HitTest] and [SceneGraph.QueryRegion].
//
// # Input and gestures
//
// Raw [InputEvent] values are queued on the [InputManager], which matches
// shortcuts, resolves pointer targets by hit test and dispatches to handlers.
// The [GestureManager] feeds every event to every registered recognizer
// (tap, swipe, pinch, rotate, long press) and returns what they emit.
// Rotation can be simulated with Ctrl+right-drag.
//
// # Layout and effects
//
// The [LayoutManager] keeps workspaces and arranges their windows with a
// [LayoutEngine] per [LayoutType]. The [EffectsManager] runs eased
// animations (via [gween]) and reports per-tick samples the window manager
// writes into the scene.
//
// # ECS integration
//
// The arbor/ecs module forwards window manager events into a [Donburi]
// world.
//
// [gween]: https://github.com/tanema/gween
// [Donburi]: https://github.com/yohamta/donburi
package arbor
