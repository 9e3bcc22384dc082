// Package capture runs live scanning. A Coordinator owns one camera.Source and
// one barcode.Decoder: it requests a preview frame, hands it to a dedicated
// decode worker, and reacts to the worker's Outcome. A miss immediately asks
// for the next frame; a success is reported to the Listener and scanning
// resumes after a restart delay.
//
// All state transitions and every Listener callback happen on the
// coordinator's event loop goroutine. The camera and the worker only talk to
// the loop through channels.
package capture
