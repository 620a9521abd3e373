package settings

import (
	"encoding/json"
	"fmt"
	"strings"
)

// defaultValue returns the static fallback for key, or nil for unknown keys.
// A fresh value is built on every call so callers can never share it.
func defaultValue(key Key) any {
	switch key {
	case KeyCommissionRates:
		return RateTable{"coach": 0.10, "closer": 0.08, "setter": 0.01}
	case KeySequraMilestones:
		return MilestoneTable{MilestoneInitial: 0.70, MilestoneSecond: 0.15, MilestoneFinal: 0.15}
	case KeyStripeConfig:
		return StripeConfig{Enabled: true, Currency: "eur"}
	case KeyHotmartConfig:
		return HotmartConfig{Enabled: true, GuaranteeDays: 7}
	case KeySequraConfig:
		return SequraConfig{Enabled: true, Installments: 3}
	case KeyCompanyInfo:
		return CompanyInfo{Name: "PayMang", Currency: "EUR"}
	}
	return nil
}

// decode turns a stored JSON value into the canonical typed value for key
func decode(key Key, raw []byte) (any, []string, error) {
	switch key {
	case KeyCommissionRates:
		return decodeRates(raw)
	case KeySequraMilestones:
		return decodeMilestones(raw)
	case KeyStripeConfig:
		v := defaultValue(key).(StripeConfig)
		err := decodeStruct(raw, &v)
		return v, nil, err
	case KeyHotmartConfig:
		v := defaultValue(key).(HotmartConfig)
		err := decodeStruct(raw, &v)
		return v, nil, err
	case KeySequraConfig:
		v := defaultValue(key).(SequraConfig)
		err := decodeStruct(raw, &v)
		return v, nil, err
	case KeyCompanyInfo:
		v := defaultValue(key).(CompanyInfo)
		err := decodeStruct(raw, &v)
		return v, nil, err
	}
	return nil, nil, ErrUnknownKey
}

// decodeStruct overlays raw onto dst, so fields missing from the stored
// object keep the values dst already holds.
func decodeStruct(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode setting: %w", err)
	}
	return nil
}

// decodeRates lower-cases role keys. A lowercase entry wins over an
// uppercase one for the same role. Non-numeric rates and rates outside
// [0,1] are dropped and reported.
func decodeRates(raw []byte) (any, []string, error) {
	var in map[string]any
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, nil, fmt.Errorf("decode commission rates: %w", err)
	}

	out := RateTable{}
	var dropped []string
	exact := map[string]bool{}
	for k, v := range in {
		rate, ok := fraction(v)
		if !ok {
			dropped = append(dropped, k)
			continue
		}
		role := strings.ToLower(k)
		isLower := k == role
		if _, seen := out[role]; seen && exact[role] && !isLower {
			continue
		}
		out[role] = rate
		exact[role] = exact[role] || isLower
	}
	return out, dropped, nil
}

// decodeMilestones maps positional names (MILESTONE_1..3) to semantic
// ones. Semantic names take precedence when both are present.
func decodeMilestones(raw []byte) (any, []string, error) {
	var in map[string]any
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, nil, fmt.Errorf("decode milestones: %w", err)
	}

	out := MilestoneTable{}
	semantic := map[string]bool{}
	var dropped []string
	for k, v := range in {
		name, isSemantic := canonicalMilestone(k)
		if name == "" {
			dropped = append(dropped, k)
			continue
		}
		share, ok := fraction(v)
		if !ok {
			dropped = append(dropped, k)
			continue
		}
		if semantic[name] && !isSemantic {
			continue
		}
		out[name] = share
		semantic[name] = semantic[name] || isSemantic
	}
	return out, dropped, nil
}

func canonicalMilestone(k string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(k))
	switch lower {
	case MilestoneInitial, MilestoneSecond, MilestoneFinal:
		return lower, true
	case "milestone_1":
		return MilestoneInitial, false
	case "milestone_2":
		return MilestoneSecond, false
	case "milestone_3":
		return MilestoneFinal, false
	}
	return "", false
}

func fraction(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}
