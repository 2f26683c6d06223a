// Package demographics holds the per-stay demographic post-processing rules
// that sit outside the temporal extractor: de-identification age recoding and
// readmission flags.
package demographics

import (
	"sort"

	"github.com/cohortica-ai/platform/pkg/common/models"
)

// De-identified datasets shift the ages of the very old to implausible values
// (anything above the HIPAA cutoff lands near 300). RecodeAge collapses those
// sentinels back to the population median of the masked group so downstream
// statistics stay usable.
const (
	shiftedAgeFloor = 90.0
	recodedAge      = 91.4
)

func RecodeAge(age float64) float64 {
	if age >= shiftedAgeFloor {
		return recodedAge
	}
	return age
}

// Flags are the readmission features for one stay.
type Flags struct {
	StayID       int64 `json:"stay_id"`
	FirstICUStay bool  `json:"first_icu_stay"`
	PriorStays   int   `json:"prior_stays"`
	StaySeq      int   `json:"stay_seq"` // 1-based order within the subject's history
}

// ReadmissionFlags orders each subject's stays by in-time (stay id breaks
// ties, so re-runs are stable) and derives the per-stay sequence counters.
func ReadmissionFlags(stays []models.Stay) map[int64]Flags {
	bySubject := make(map[int64][]models.Stay)
	for _, s := range stays {
		bySubject[s.SubjectID] = append(bySubject[s.SubjectID], s)
	}

	flags := make(map[int64]Flags, len(stays))
	for _, subjectStays := range bySubject {
		sort.SliceStable(subjectStays, func(i, j int) bool {
			if !subjectStays[i].InTime.Equal(subjectStays[j].InTime) {
				return subjectStays[i].InTime.Before(subjectStays[j].InTime)
			}
			return subjectStays[i].StayID < subjectStays[j].StayID
		})
		for i, s := range subjectStays {
			flags[s.StayID] = Flags{
				StayID:       s.StayID,
				FirstICUStay: i == 0,
				PriorStays:   i,
				StaySeq:      i + 1,
			}
		}
	}
	return flags
}
