package classify

import "siteguard/internal/model"

// Classify maps a measured value to a danger level using the per-kind
// threshold bands. It is pure: no state, no side effects. Unknown kinds
// classify as normal.
func Classify(kind model.SensorKind, value float64) model.RiskLevel {
	switch kind {
	case model.KindTemperature:
		return classifyTemperature(value)
	case model.KindHumidity:
		return classifyHumidity(value)
	case model.KindVibration:
		return classifyVibration(value)
	case model.KindCurrent:
		return classifyCurrent(value)
	case model.KindParticulate:
		return classifyParticulate(value)
	}
	return model.LevelNormal
}

// Ambient temperature in deg C. Both extremes are dangerous: heat stress
// above 40 and freezing conditions below -35.
func classifyTemperature(v float64) model.RiskLevel {
	switch {
	case v > 40 || v < -35:
		return model.LevelSevere
	case v > 30 || v < 25:
		return model.LevelElevated
	default:
		return model.LevelNormal
	}
}

// Relative humidity in percent.
func classifyHumidity(v float64) model.RiskLevel {
	switch {
	case v >= 80:
		return model.LevelSevere
	case v >= 60:
		return model.LevelElevated
	default:
		return model.LevelNormal
	}
}

// Bearing vibration velocity in mm/s, bands per ISO 10816 zone C/D.
func classifyVibration(v float64) model.RiskLevel {
	switch {
	case v > 7.1:
		return model.LevelSevere
	case v > 2.8:
		return model.LevelElevated
	default:
		return model.LevelNormal
	}
}

// Leakage current in mA.
func classifyCurrent(v float64) model.RiskLevel {
	switch {
	case v >= 30:
		return model.LevelSevere
	case v >= 7:
		return model.LevelElevated
	default:
		return model.LevelNormal
	}
}

// Airborne particulate in ug/m3.
func classifyParticulate(v float64) model.RiskLevel {
	switch {
	case v >= 150:
		return model.LevelSevere
	case v >= 75:
		return model.LevelElevated
	default:
		return model.LevelNormal
	}
}
