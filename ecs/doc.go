// Package ecs mirrors arbor window manager state into a [Donburi] world.
//
// A [Bridge] keeps one entity per managed window, carrying a [WindowData]
// component that follows the window's workspace, rect, state and focus. It
// also republishes every manager event as a typed Donburi event so ECS
// systems can react to them.
//
// Usage:
//
//	bridge := ecs.NewBridge(world)
//	wm.AddEventListener(bridge.Listener())
//
//	ecs.WindowEventType.Subscribe(world, func(w donburi.World, ev arbor.Event) { ... })
//	// each frame:
//	events.ProcessAllEvents(world)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
