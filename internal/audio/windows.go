package audio

import "math"

// WindowSeconds is the fixed chunk length used for remote transcription.
const WindowSeconds = 240

// Window is one time slice of a source.
type Window struct {
	Index  int
	Start  float64
	Length float64
}

// End returns the exclusive end offset of the window in seconds.
func (w Window) End() float64 {
	return w.Start + w.Length
}

// Windows splits a duration into consecutive windows of w seconds. The last
// window is shorter when d is not a multiple of w.
func Windows(d, w float64) []Window {
	if d <= 0 || w <= 0 {
		return nil
	}
	count := int(math.Ceil(d / w))
	out := make([]Window, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * w
		out = append(out, Window{
			Index:  i,
			Start:  start,
			Length: math.Min(w, d-start),
		})
	}
	return out
}

// ChunkCount is the number of WindowSeconds windows covering d.
func ChunkCount(d float64) int {
	return len(Windows(d, WindowSeconds))
}
