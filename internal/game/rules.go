// internal/game/rules.go
package game

import "fmt"

// HouseRules defines table-level settings that modify standard play.
type HouseRules struct {
	TargetScore         int  `json:"targetScore"`         // banked total that ends the game (default 200)
	TurnTimerSec        int  `json:"turnTimerSec"`        // seconds before a turn auto-stays (0 => no limit)
	ForfeitOnDisconnect bool `json:"forfeitOnDisconnect"` // disconnected players bust for the round
	MaxPlayers          int  `json:"maxPlayers"`          // table capacity
}

// DefaultHouseRules returns the standard Flip Seven table settings.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		TargetScore:         200,
		TurnTimerSec:        15,
		ForfeitOnDisconnect: true,
		MaxPlayers:          8,
	}
}

// Update applies the provided rules on top of the existing ones. Keys that are
// absent keep their old value; values of the wrong type are rejected.
func (rules *HouseRules) Update(newRules map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		if val, exists := newRules[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}

	assignInt := func(field *int, key string, minVal int) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		// JSON numbers arrive as float64
		switch v := val.(type) {
		case float64:
			*field = int(v)
		case int:
			*field = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if *field < minVal {
			return fmt.Errorf("%s must be at least %d", key, minVal)
		}
		return nil
	}

	if err := assignInt(&rules.TargetScore, "targetScore", 1); err != nil {
		return err
	}
	if err := assignInt(&rules.TurnTimerSec, "turnTimerSec", 0); err != nil {
		return err
	}
	if err := assignBool(&rules.ForfeitOnDisconnect, "forfeitOnDisconnect"); err != nil {
		return err
	}
	if err := assignInt(&rules.MaxPlayers, "maxPlayers", 2); err != nil {
		return err
	}
	return nil
}

// ParseRules returns a copy of current with the map applied on top.
func ParseRules(rules map[string]interface{}, current HouseRules) (HouseRules, error) {
	houseRules := current
	err := houseRules.Update(rules)
	return houseRules, err
}
