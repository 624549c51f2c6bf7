package classify

import (
	"testing"

	"siteguard/internal/model"
)

func TestTemperatureBands(t *testing.T) {
	cases := []struct {
		value float64
		want  model.RiskLevel
	}{
		{27, model.LevelNormal},
		{25, model.LevelNormal},
		{30, model.LevelNormal},
		{31, model.LevelElevated},
		{24, model.LevelElevated},
		{-20, model.LevelElevated},
		{42, model.LevelSevere},
		{-36, model.LevelSevere},
	}
	for _, c := range cases {
		if got := Classify(model.KindTemperature, c.value); got != c.want {
			t.Fatalf("temperature %.1f: got %s want %s", c.value, got, c.want)
		}
	}
}

func TestHumidityBands(t *testing.T) {
	if got := Classify(model.KindHumidity, 45); got != model.LevelNormal {
		t.Fatalf("humidity 45: %s", got)
	}
	if got := Classify(model.KindHumidity, 60); got != model.LevelElevated {
		t.Fatalf("humidity 60: %s", got)
	}
	if got := Classify(model.KindHumidity, 80); got != model.LevelSevere {
		t.Fatalf("humidity 80: %s", got)
	}
}

func TestVibrationBands(t *testing.T) {
	if got := Classify(model.KindVibration, 2.8); got != model.LevelNormal {
		t.Fatalf("vibration 2.8: %s", got)
	}
	if got := Classify(model.KindVibration, 3.5); got != model.LevelElevated {
		t.Fatalf("vibration 3.5: %s", got)
	}
	if got := Classify(model.KindVibration, 7.2); got != model.LevelSevere {
		t.Fatalf("vibration 7.2: %s", got)
	}
}

func TestCurrentBands(t *testing.T) {
	if got := Classify(model.KindCurrent, 5); got != model.LevelNormal {
		t.Fatalf("current 5: %s", got)
	}
	if got := Classify(model.KindCurrent, 7); got != model.LevelElevated {
		t.Fatalf("current 7: %s", got)
	}
	if got := Classify(model.KindCurrent, 30); got != model.LevelSevere {
		t.Fatalf("current 30: %s", got)
	}
}

func TestParticulateBands(t *testing.T) {
	if got := Classify(model.KindParticulate, 50); got != model.LevelNormal {
		t.Fatalf("particulate 50: %s", got)
	}
	if got := Classify(model.KindParticulate, 75); got != model.LevelElevated {
		t.Fatalf("particulate 75: %s", got)
	}
	if got := Classify(model.KindParticulate, 150); got != model.LevelSevere {
		t.Fatalf("particulate 150: %s", got)
	}
}

func TestUnknownKindIsNormal(t *testing.T) {
	if got := Classify(model.SensorKind("radon"), 9999); got != model.LevelNormal {
		t.Fatalf("unknown kind: %s", got)
	}
}
