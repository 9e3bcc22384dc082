// Package camera defines the frame source used by live scanning, the camera
// parameter model and its configuration rules, and two sources that need no
// hardware: SequenceSource replays image files at a fixed frame interval and
// StreamSource delivers frames pushed by a producer such as a WebSocket client.
package camera
