// Package ctp maps the pipeline's Side/Offset vocabulary to and from the
// single-character wire fields a CTP-style futures gateway expects.
package ctp

import (
	"fmt"

	"orderpipe/pkg/types"
)

const (
	DirectionBuy  = "0"
	DirectionSell = "1"

	OffsetFlagOpen       = "0"
	OffsetFlagClose      = "1"
	OffsetFlagCloseToday = "3"
)

// MappingError is returned when a value has no CTP wire equivalent (or vice
// versa). It is always a programmer/config error, never a runtime market
// condition.
type MappingError struct {
	Field string
	Value string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("ctp mapping: unknown %s value %q", e.Field, e.Value)
}

// SideToDirection converts a Side to its CTP direction field.
func SideToDirection(side types.Side) (string, error) {
	switch side {
	case types.SideBuy:
		return DirectionBuy, nil
	case types.SideSell:
		return DirectionSell, nil
	default:
		return "", &MappingError{Field: "side", Value: string(side)}
	}
}

// DirectionToSide converts a CTP direction field back to a Side.
func DirectionToSide(direction string) (types.Side, error) {
	switch direction {
	case DirectionBuy:
		return types.SideBuy, nil
	case DirectionSell:
		return types.SideSell, nil
	default:
		return "", &MappingError{Field: "direction", Value: direction}
	}
}

// OffsetToFlag converts an Offset to its CTP offset flag.
func OffsetToFlag(offset types.Offset) (string, error) {
	switch offset {
	case types.OffsetOpen:
		return OffsetFlagOpen, nil
	case types.OffsetClose:
		return OffsetFlagClose, nil
	case types.OffsetCloseToday:
		return OffsetFlagCloseToday, nil
	default:
		return "", &MappingError{Field: "offset", Value: string(offset)}
	}
}

// FlagToOffset converts a CTP offset flag back to an Offset.
func FlagToOffset(flag string) (types.Offset, error) {
	switch flag {
	case OffsetFlagOpen:
		return types.OffsetOpen, nil
	case OffsetFlagClose:
		return types.OffsetClose, nil
	case OffsetFlagCloseToday:
		return types.OffsetCloseToday, nil
	default:
		return "", &MappingError{Field: "offset_flag", Value: flag}
	}
}
