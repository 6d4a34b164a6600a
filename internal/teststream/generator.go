package teststream

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	profileKindDivisor = 4
)

// Constants for synthetic heart rate profiles, in bpm.
const (
	restingBaseline  = 62.0
	restingSwing     = 6.0
	activeBaseline   = 85.0
	activeSwing      = 15.0
	exerciseBaseline = 120.0
	exerciseSwing    = 25.0
	recoveryBaseline = 95.0
	recoverySwing    = 20.0
	jitterSwing      = 3.0
	breathingPeriod  = 40.0 // seconds per sinusoidal cycle
)

// Constants for derived HRV sub-metrics.
const (
	msPerMinute   = 60000.0
	rrJitterMS    = 25.0
	sdnnBase      = 35.0
	sdnnSwing     = 30.0
	rmssdBase     = 28.0
	rmssdSwing    = 25.0
	pnn50Base     = 5.0
	pnn50Swing    = 20.0
	subMetricRate = 0.8 // fraction of samples carrying HRV metrics
)

// Profile kind cases.
const (
	caseResting  = 0
	caseActive   = 1
	caseExercise = 2
	caseRecovery = 3
)

// subjectProfile drives a plausible heart rate trace for one subject.
type subjectProfile struct {
	id       string
	baseline float64
	swing    float64
	phase    float64
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// newSubjectProfiles creates the requested number of simulated subjects,
// spread across resting, active, exercising and recovering profiles.
func newSubjectProfiles(count int) []subjectProfile {
	profiles := make([]subjectProfile, count)
	for i := range profiles {
		kind, _ := rand.Int(rand.Reader, big.NewInt(profileKindDivisor))

		var baseline, swing float64
		switch kind.Int64() {
		case caseResting:
			baseline, swing = restingBaseline, restingSwing
		case caseActive:
			baseline, swing = activeBaseline, activeSwing
		case caseExercise:
			baseline, swing = exerciseBaseline, exerciseSwing
		case caseRecovery:
			baseline, swing = recoveryBaseline, recoverySwing
		default:
			baseline, swing = restingBaseline, restingSwing
		}

		profiles[i] = subjectProfile{
			id:       uuid.New().String(),
			baseline: baseline,
			swing:    swing,
			phase:    getRandomFloat() * 2 * math.Pi,
		}
	}
	return profiles
}

// nextSample produces the subject's reading at elapsed time t. Heart rate
// follows a slow sinusoid around the profile baseline with per-sample
// jitter; HRV sub-metrics are derived from the rate and omitted on a
// fraction of samples the way real monitors drop them.
func (p subjectProfile) nextSample(t time.Duration) Sample {
	seconds := t.Seconds()
	wave := math.Sin(2*math.Pi*seconds/breathingPeriod + p.phase)
	jitter := (getRandomFloat() - 0.5) * 2 * jitterSwing

	hr := int(math.Round(p.baseline + p.swing*wave + jitter))
	if hr < 30 {
		hr = 30
	}

	sample := Sample{
		SubjectID: p.id,
		HeartRate: hr,
		TS:        time.Now().UTC().Format(time.RFC3339),
	}

	if getRandomFloat() < subMetricRate {
		rr := msPerMinute/float64(hr) + (getRandomFloat()-0.5)*2*rrJitterMS
		sdnn := sdnnBase + getRandomFloat()*sdnnSwing
		rmssd := rmssdBase + getRandomFloat()*rmssdSwing
		pnn50 := pnn50Base + getRandomFloat()*pnn50Swing
		sample.RRInterval = &rr
		sample.SDNN = &sdnn
		sample.RMSSD = &rmssd
		sample.PNN50 = &pnn50
	}

	return sample
}
