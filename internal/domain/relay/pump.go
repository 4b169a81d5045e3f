package relay

import (
	"log/slog"

	"github.com/Stream-Gate/Streamgate/pkg/frame"
)

// Result reports the outcome of one forwarding direction.
type Result struct {
	// Direction identifies which leg of the session this pump served.
	Direction frame.Direction

	// Frames counts payloads successfully forwarded to the destination.
	Frames int64

	// Dropped counts payloads discarded because they failed to decode.
	Dropped int64

	// Bytes counts the canonical bytes written to the destination.
	Bytes int64

	// Err is nil when the pump ended on normal stream closure. Any other
	// terminal condition is recorded here for the caller to log and
	// account; it is never re-raised.
	Err error
}

// Pump reads frames from src, normalizes each through the JSON codec, and
// writes the canonical form to dst until src closes or an unrecoverable
// error occurs.
//
// Per-frame decode failures drop only that frame and the loop continues.
// A destination write that fails because the stream closed ends the pump
// as a normal completion. The pipeline is strictly sequential: one frame
// is read, normalized, and written before the next read; backpressure is
// whatever the underlying transport provides.
//
// Pump carries no deadline and no cancellation. The caller unblocks a
// stalled pump by closing either stream.
func Pump(src, dst FrameStream, dir frame.Direction, logger *slog.Logger) Result {
	res := Result{Direction: dir}

	for {
		payload, err := src.ReadFrame()
		if err != nil {
			if !IsClosed(err) {
				logger.Debug("relay read failed",
					"direction", dir.String(),
					"error", err,
				)
				res.Err = err
			}
			return res
		}

		canonical, err := frame.Normalize(payload)
		if err != nil {
			res.Dropped++
			logger.Debug("dropping undecodable frame",
				"direction", dir.String(),
				"size", len(payload),
				"error", err,
			)
			continue
		}

		if err := dst.WriteFrame(canonical); err != nil {
			if IsClosed(err) {
				return res
			}
			logger.Debug("relay write failed",
				"direction", dir.String(),
				"error", err,
			)
			res.Err = err
			return res
		}

		res.Frames++
		res.Bytes += int64(len(canonical))
	}
}
