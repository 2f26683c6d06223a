package registry

import "time"

// Builtin returns the default feature set: first/closest vitals, admission
// labs and anthropometrics for ICU stays. Validity ranges reject data-entry
// errors and implausible outliers; features that deliberately carry no filter
// declare Unbounded() so the absence is visible.
//
// Source tag order is the documented tie-break priority for each feature,
// e.g. arterial-line pressures before cuff pressures, admission weight before
// daily weight.
func Builtin() []Feature {
	sixHours := Duration(6 * time.Hour)
	oneDay := Duration(24 * time.Hour)
	sevenDays := Duration(7 * 24 * time.Hour)

	return []Feature{
		{
			Name:       "heart-rate-first",
			Sources:    []Source{{Tag: "hr-monitor"}, {Tag: "hr-manual"}},
			Validity:   Between(1, 300),
			Policy:     "earliest",
			Anchor:     "administrative",
			FuzzBefore: sixHours,
		},
		{
			Name:            "heart-rate-admission",
			Sources:         []Source{{Tag: "hr-monitor"}, {Tag: "hr-manual"}},
			Validity:        Between(1, 300),
			Policy:          "closest-to-reference",
			Anchor:          "clinical",
			OnMissingWindow: MissingWindowAbsent,
		},
		{
			Name:       "sysbp-first",
			Sources:    []Source{{Tag: "sysbp-arterial"}, {Tag: "sysbp-cuff"}},
			Validity:   Between(1, 400),
			Policy:     "earliest",
			Anchor:     "administrative",
			FuzzBefore: sixHours,
		},
		{
			Name:       "diasbp-first",
			Sources:    []Source{{Tag: "diasbp-arterial"}, {Tag: "diasbp-cuff"}},
			Validity:   Between(1, 300),
			Policy:     "earliest",
			Anchor:     "administrative",
			FuzzBefore: sixHours,
		},
		{
			Name:       "meanbp-first",
			Sources:    []Source{{Tag: "meanbp-arterial"}, {Tag: "meanbp-cuff"}},
			Validity:   Between(1, 300),
			Policy:     "earliest",
			Anchor:     "administrative",
			FuzzBefore: sixHours,
		},
		{
			Name: "temperature-first",
			Sources: []Source{
				{Tag: "temp-celsius"},
				{Tag: "temp-fahrenheit", Unit: "fahrenheit"},
			},
			Validity:   Between(10, 50),
			Policy:     "earliest",
			Anchor:     "administrative",
			FuzzBefore: sixHours,
		},
		{
			Name:       "spo2-first",
			Sources:    []Source{{Tag: "spo2-monitor"}},
			Validity:   Between(1, 100),
			Policy:     "earliest",
			Anchor:     "administrative",
			FuzzBefore: sixHours,
		},
		{
			Name:       "resprate-first",
			Sources:    []Source{{Tag: "resprate-monitor"}, {Tag: "resprate-manual"}},
			Validity:   Between(1, 150),
			Policy:     "earliest",
			Anchor:     "administrative",
			FuzzBefore: sixHours,
		},
		{
			Name:       "gcs-first",
			Sources:    []Source{{Tag: "gcs-total"}},
			Validity:   Between(3, 15),
			Policy:     "earliest",
			Anchor:     "administrative",
			FuzzBefore: sixHours,
		},
		{
			Name:       "glucose-first",
			Sources:    []Source{{Tag: "glucose-lab"}, {Tag: "glucose-fingerstick"}},
			Validity:   Between(1, 2000),
			Policy:     "earliest",
			Anchor:     "administrative",
			FuzzBefore: sixHours,
		},

		// Anthropometrics: the closest recorded value to ICU admission wins,
		// admission-charted values outrank routine daily ones.
		{
			Name: "height",
			Sources: []Source{
				{Tag: "height-cm"},
				{Tag: "height-inches", Unit: "inches"},
			},
			Validity:   Between(30, 300),
			Policy:     "closest-to-reference",
			Anchor:     "administrative",
			FuzzBefore: sevenDays,
			FuzzAfter:  oneDay,
		},
		{
			Name: "weight",
			Sources: []Source{
				{Tag: "weight-admit-kg"},
				{Tag: "weight-daily-kg"},
				{Tag: "weight-admit-lbs", Unit: "pounds"},
				{Tag: "weight-daily-lbs", Unit: "pounds"},
			},
			Validity:   Between(1, 700),
			Policy:     "closest-to-reference",
			Anchor:     "administrative",
			FuzzBefore: sevenDays,
			FuzzAfter:  oneDay,
		},

		// Admission labs: earliest value in a window reaching back before
		// administrative admission, since many panels are drawn in the ED.
		labFirst("wbc-first", "wbc-lab", Between(0.1, 500)),
		labFirst("hemoglobin-first", "hemoglobin-lab", Between(0.1, 30)),
		labFirst("platelets-first", "platelets-lab", Between(1, 3000)),
		labFirst("sodium-first", "sodium-lab", Between(50, 225)),
		labFirst("potassium-first", "potassium-lab", Between(0.5, 20)),
		labFirst("chloride-first", "chloride-lab", Between(50, 200)),
		labFirst("bicarbonate-first", "bicarbonate-lab", Between(1, 80)),
		labFirst("bun-first", "bun-lab", Between(1, 300)),
		labFirst("creatinine-first", "creatinine-lab", Between(0.1, 60)),
		labFirst("lactate-first", "lactate-lab", Between(0.1, 50)),
		labFirst("bilirubin-first", "bilirubin-lab", Between(0.1, 100)),
		labFirst("inr-first", "inr-lab", Unbounded()),
		labFirst("ph-first", "ph-blood-gas", Between(6.3, 8.0)),
		labFirst("po2-first", "po2-blood-gas", Between(1, 800)),
		labFirst("pco2-first", "pco2-blood-gas", Between(1, 250)),
	}
}

func labFirst(name, tag string, validity Range) Feature {
	return Feature{
		Name:       name,
		Sources:    []Source{{Tag: tag}},
		Validity:   validity,
		Policy:     "earliest",
		Anchor:     "administrative",
		FuzzBefore: Duration(24 * time.Hour),
	}
}
