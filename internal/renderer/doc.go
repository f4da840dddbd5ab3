// Package renderer turns pane grids into frame descriptors.
//
// Each frame the Renderer reads every visible pane's render state, which
// consumes exactly the dirty rows captured in that read. Rows that did not
// change keep their cached instance data; a pane with no dirty rows skips
// derivation entirely. A frame carries three instance buffers and a screen
// uniform:
//
//	Background  one rect per run of same-colored adjacent cells
//	Overlay     selection spans, dividers and the cursor
//	Text        one glyph instance per occupied cell, referencing an atlas slot
//
// Draw order is Background, Overlay, Text. Frames are handed to a
// backend.Sink; the renderer itself never binds a GPU API.
//
// Usage:
//
//	r := renderer.New(renderer.DefaultOptions(), logger)
//	pacer := renderer.NewPacer(8 * time.Millisecond)
//	for {
//		start := time.Now()
//		frame := r.Render(scene, start)
//		sink.Submit(frame)
//		time.Sleep(pacer.Next(time.Since(start)))
//	}
package renderer
