package animator

import "time"

// Params tunes the procedural motion. Angles are radians, positions are
// scene units, periods are wall time.
type Params struct {
	MouthFrequency float64 `mapstructure:"mouth_frequency" yaml:"mouth_frequency"`
	MouthAmplitude float32 `mapstructure:"mouth_amplitude" yaml:"mouth_amplitude"`

	HeadYawScale   float32 `mapstructure:"head_yaw_scale" yaml:"head_yaw_scale"`
	HeadPitchScale float32 `mapstructure:"head_pitch_scale" yaml:"head_pitch_scale"`
	HeadSmoothing  float32 `mapstructure:"head_smoothing" yaml:"head_smoothing"`

	ArmRest      float32       `mapstructure:"arm_rest" yaml:"arm_rest"`
	ArmAmplitude float32       `mapstructure:"arm_amplitude" yaml:"arm_amplitude"`
	ArmPeriod    time.Duration `mapstructure:"arm_period" yaml:"arm_period"`

	BobBase      float32       `mapstructure:"bob_base" yaml:"bob_base"`
	BobAmplitude float32       `mapstructure:"bob_amplitude" yaml:"bob_amplitude"`
	BobPeriod    time.Duration `mapstructure:"bob_period" yaml:"bob_period"`

	BlinkClosed time.Duration `mapstructure:"blink_closed" yaml:"blink_closed"`
	BlinkMinGap time.Duration `mapstructure:"blink_min_gap" yaml:"blink_min_gap"`
	BlinkMaxGap time.Duration `mapstructure:"blink_max_gap" yaml:"blink_max_gap"`
}

func DefaultParams() Params {
	return Params{
		MouthFrequency: 12,
		MouthAmplitude: 0.35,

		HeadYawScale:   0.4,
		HeadPitchScale: 0.2,
		HeadSmoothing:  0.3,

		ArmRest:      1.2,
		ArmAmplitude: 0.04,
		ArmPeriod:    11 * time.Second,

		BobBase:      -1.4,
		BobAmplitude: 0.015,
		BobPeriod:    8 * time.Second,

		BlinkClosed: 150 * time.Millisecond,
		BlinkMinGap: 2000 * time.Millisecond,
		BlinkMaxGap: 6000 * time.Millisecond,
	}
}

// withDefaults fills zero fields so a partially written config still animates.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.MouthFrequency == 0 {
		p.MouthFrequency = d.MouthFrequency
	}
	if p.HeadSmoothing <= 0 || p.HeadSmoothing > 1 {
		p.HeadSmoothing = d.HeadSmoothing
	}
	if p.ArmPeriod <= 0 {
		p.ArmPeriod = d.ArmPeriod
	}
	if p.BobPeriod <= 0 {
		p.BobPeriod = d.BobPeriod
	}
	if p.BlinkClosed <= 0 {
		p.BlinkClosed = d.BlinkClosed
	}
	if p.BlinkMinGap <= 0 {
		p.BlinkMinGap = d.BlinkMinGap
	}
	if p.BlinkMaxGap <= p.BlinkMinGap {
		p.BlinkMaxGap = p.BlinkMinGap + time.Millisecond
	}
	return p
}
