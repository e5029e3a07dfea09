// Package device tracks the host's connectivity and capability snapshot.
//
// A single [Monitor] owns the current [Status]. Telemetry arrives as partial
// [Reading] values, either pulled by a [Poller] (see [HostPoller], backed by
// gopsutil) or pushed from a watched telemetry file (see [FileSource], backed
// by fsnotify). Every applied reading publishes a device.updated event, and
// connectivity transitions publish device.connectivity_changed so that the
// sync coordinator can react to the device coming back online.
package device
