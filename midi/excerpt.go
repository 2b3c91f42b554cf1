package midi

import (
	"sort"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Excerpt copies s from tick from onwards, with that tick as time zero.
// Events before from other than notes (tempo, meter, names) are kept at the
// start. At most maxNotes note messages are copied per track; notes still
// held at the cut are released. maxNotes <= 0 means no limit.
func Excerpt(s *smf.SMF, from uint64, maxNotes int) *smf.SMF {
	res := smf.New()
	res.TimeFormat = s.TimeFormat

	for _, track := range s.Tracks {
		var out smf.Track
		var absTicks, last uint64
		held := make(map[[2]uint8]bool)
		numNotes := 0
	TrackEventLoop:
		for _, evt := range track {
			absTicks += uint64(evt.Delta)
			var at uint64
			if absTicks > from {
				at = absTicks - from
			}

			var channel, key, velocity uint8
			msg := gomidi.Message(evt.Message)
			isOn := msg.GetNoteStart(&channel, &key, &velocity)
			isOff := !isOn && msg.GetNoteEnd(&channel, &key)
			switch {
			case isOn || isOff:
				if absTicks < from {
					continue
				}
				if isOn {
					held[[2]uint8{channel, key}] = true
				} else {
					delete(held, [2]uint8{channel, key})
				}
				numNotes++
			case isEndOfTrack(evt.Message):
				continue
			}

			evt.Delta = uint32(at - last)
			out = append(out, evt)
			last = at
			if maxNotes > 0 && numNotes >= maxNotes {
				break TrackEventLoop
			}
		}

		keys := make([][2]uint8, 0, len(held))
		for k := range held {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i][0] != keys[j][0] {
				return keys[i][0] < keys[j][0]
			}
			return keys[i][1] < keys[j][1]
		})
		for _, k := range keys {
			out.Add(0, gomidi.NoteOff(k[0], k[1]))
		}
		out.Close(0)
		res.Tracks = append(res.Tracks, out)
	}
	return res
}

func isEndOfTrack(msg smf.Message) bool {
	return len(msg) >= 2 && msg[0] == 0xFF && msg[1] == 0x2F
}
