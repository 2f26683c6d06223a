package demographics

import (
	"testing"
	"time"

	"github.com/cohortica-ai/platform/pkg/common/models"
)

func TestRecodeAge(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{45.0, 45.0},
		{89.9, 89.9},
		{90.0, 91.4},
		{91.4, 91.4},
		{300.2, 91.4},
	}
	for _, tc := range cases {
		if got := RecodeAge(tc.in); got != tc.want {
			t.Fatalf("RecodeAge(%v): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestReadmissionFlags(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2024, 1, 1+d, 0, 0, 0, 0, time.UTC)
	}
	stays := []models.Stay{
		// Deliberately out of chronological order.
		{StayID: 3, SubjectID: 10, InTime: day(20)},
		{StayID: 1, SubjectID: 10, InTime: day(0)},
		{StayID: 2, SubjectID: 10, InTime: day(5)},
		{StayID: 4, SubjectID: 11, InTime: day(2)},
	}

	flags := ReadmissionFlags(stays)
	if len(flags) != 4 {
		t.Fatalf("expected flags for every stay, got %d", len(flags))
	}

	want := map[int64]Flags{
		1: {StayID: 1, FirstICUStay: true, PriorStays: 0, StaySeq: 1},
		2: {StayID: 2, FirstICUStay: false, PriorStays: 1, StaySeq: 2},
		3: {StayID: 3, FirstICUStay: false, PriorStays: 2, StaySeq: 3},
		4: {StayID: 4, FirstICUStay: true, PriorStays: 0, StaySeq: 1},
	}
	for id, w := range want {
		if flags[id] != w {
			t.Fatalf("stay %d: expected %+v, got %+v", id, w, flags[id])
		}
	}
}

func TestReadmissionFlagsTiedInTimes(t *testing.T) {
	in := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stays := []models.Stay{
		{StayID: 8, SubjectID: 10, InTime: in},
		{StayID: 7, SubjectID: 10, InTime: in},
	}

	flags := ReadmissionFlags(stays)
	if !flags[7].FirstICUStay || flags[8].FirstICUStay {
		t.Fatal("tied in-times must order by stay id")
	}
	if flags[8].StaySeq != 2 {
		t.Fatalf("expected stay 8 second, got seq %d", flags[8].StaySeq)
	}
}
