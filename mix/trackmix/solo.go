package trackmix

import "github.com/cwbudde/algo-mixer/mix/project"

// Effective returns each track's audible gain under mute/solo precedence:
// while any track is soloed, tracks that are not soloed are silent. Soloed
// and unsoloed tracks alike still honor their own mute.
func Effective(tracks []project.Track) map[string]float64 {
	anySolo := false
	for _, tr := range tracks {
		if tr.IsSolo {
			anySolo = true
			break
		}
	}

	out := make(map[string]float64, len(tracks))
	for _, tr := range tracks {
		switch {
		case anySolo && !tr.IsSolo, tr.IsMuted:
			out[tr.ID] = 0
		default:
			out[tr.ID] = tr.Volume
		}
	}

	return out
}
