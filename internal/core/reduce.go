package core

import "strmatch/pkg/domain"

// ReduceProfiles keeps only the winning candidate profile of a scored cell
// line and sets BestScore. The winner has the highest score; ties go to the
// higher MarkerNumber, then to the earliest candidate.
func ReduceProfiles(cl *domain.CellLine) {
	if len(cl.Profiles) == 0 {
		cl.BestScore = 0
		return
	}
	best := 0
	for i := 1; i < len(cl.Profiles); i++ {
		p, b := &cl.Profiles[i], &cl.Profiles[best]
		if p.Score > b.Score || (p.Score == b.Score && p.MarkerNumber > b.MarkerNumber) {
			best = i
		}
	}
	cl.Profiles = []domain.Profile{cl.Profiles[best]}
	cl.BestScore = cl.Profiles[0].Score
}
