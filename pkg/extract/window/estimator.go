// Package window estimates the clinically accurate monitoring interval of an
// ICU stay from a proxy signal (typically the stay's own heart-rate events),
// for use when administrative in/out timestamps are known to lag or lead the
// actual monitoring period.
package window

import (
	"sort"
	"time"

	"github.com/cohortica-ai/platform/pkg/extract"
)

// AdminBounds is a stay's recorded administrative interval.
type AdminBounds struct {
	StayID    int64
	SubjectID int64
	InTime    time.Time
	OutTime   time.Time
}

// ProxyEvent is one proxy-signal observation for a subject. Attribution to a
// stay happens here, by time, not by any recorded stay id: near back-to-back
// admissions the recorded attribution is exactly what cannot be trusted.
type ProxyEvent struct {
	SubjectID int64
	ChartedAt time.Time
}

// Estimator widens each stay's administrative interval by the configured fuzz
// and takes the first/last proxy event inside the widened boundary as the
// monitoring window.
type Estimator struct {
	FuzzBefore time.Duration
	FuzzAfter  time.Duration
}

func NewEstimator(fuzzBefore, fuzzAfter time.Duration) *Estimator {
	return &Estimator{FuzzBefore: fuzzBefore, FuzzAfter: fuzzAfter}
}

// boundary is a stay's fuzzy extraction interval. When two same-subject stays
// sit closer together than FuzzBefore+FuzzAfter, the disputed region is split
// at the midpoint between the earlier stay's out-time and the later stay's
// in-time. The midpoint itself belongs to the earlier stay, so the later
// stay's lower bound is exclusive.
type boundary struct {
	stayID int64
	lo     time.Time
	hi     time.Time
	loExcl bool
}

func (b boundary) contains(t time.Time) bool {
	if t.After(b.hi) {
		return false
	}
	if b.loExcl {
		return t.After(b.lo)
	}
	return !t.Before(b.lo)
}

// Estimate returns the monitoring window per stay. Stays with no proxy event
// inside their boundary are simply missing from the map; callers must treat
// that as "extraction impossible", never silently substitute administrative
// bounds (an explicit fallback belongs at the call site).
func (e *Estimator) Estimate(stays []AdminBounds, proxy []ProxyEvent) map[int64]extract.Window {
	bySubject := make(map[int64][]AdminBounds)
	for _, s := range stays {
		bySubject[s.SubjectID] = append(bySubject[s.SubjectID], s)
	}

	proxyBySubject := make(map[int64][]ProxyEvent)
	for _, ev := range proxy {
		proxyBySubject[ev.SubjectID] = append(proxyBySubject[ev.SubjectID], ev)
	}

	windows := make(map[int64]extract.Window)
	for subjectID, subjectStays := range bySubject {
		sort.SliceStable(subjectStays, func(i, j int) bool {
			if !subjectStays[i].InTime.Equal(subjectStays[j].InTime) {
				return subjectStays[i].InTime.Before(subjectStays[j].InTime)
			}
			return subjectStays[i].StayID < subjectStays[j].StayID
		})

		for i, stay := range subjectStays {
			b := boundary{
				stayID: stay.StayID,
				lo:     stay.InTime.Add(-e.FuzzBefore),
				hi:     stay.OutTime.Add(e.FuzzAfter),
			}
			if i > 0 {
				// Clamp only when the widened boundaries of the two stays
				// actually collide.
				prev := subjectStays[i-1]
				if prev.OutTime.Add(e.FuzzAfter).After(b.lo) {
					mid := midpoint(prev.OutTime, stay.InTime)
					if b.lo.Before(mid) {
						b.lo = mid
						b.loExcl = true
					}
				}
			}
			if i+1 < len(subjectStays) {
				next := subjectStays[i+1]
				if next.InTime.Add(-e.FuzzBefore).Before(b.hi) {
					mid := midpoint(stay.OutTime, next.InTime)
					if b.hi.After(mid) {
						b.hi = mid
					}
				}
			}

			win, found := observedSpan(b, proxyBySubject[subjectID])
			if found {
				windows[stay.StayID] = win
			}
		}
	}

	return windows
}

// observedSpan returns the [min, max] proxy timestamp inside the boundary.
func observedSpan(b boundary, events []ProxyEvent) (extract.Window, bool) {
	var win extract.Window
	found := false
	for _, ev := range events {
		if !b.contains(ev.ChartedAt) {
			continue
		}
		if !found {
			win.Start = ev.ChartedAt
			win.End = ev.ChartedAt
			found = true
			continue
		}
		if ev.ChartedAt.Before(win.Start) {
			win.Start = ev.ChartedAt
		}
		if ev.ChartedAt.After(win.End) {
			win.End = ev.ChartedAt
		}
	}
	return win, found
}

func midpoint(a, b time.Time) time.Time {
	return a.Add(b.Sub(a) / 2)
}
