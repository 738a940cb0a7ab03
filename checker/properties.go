package checker

import (
	"fmt"

	"github.com/specterops/recordcheck/cardinality"
	"github.com/specterops/recordcheck/record"
	"github.com/specterops/recordcheck/report"
)

// PropertyValues maps property key ids to the values read from an entity's property chain.
type PropertyValues map[int32]record.Value

// Has reports whether every one of the given keys has a value.
func (s PropertyValues) Has(keys ...int32) bool {
	for _, key := range keys {
		if _, found := s[key]; !found {
			return false
		}
	}

	return true
}

// Tuple returns the values of the given keys in key order.
func (s PropertyValues) Tuple(keys []int32) []record.Value {
	values := make([]record.Value, len(keys))

	for idx, key := range keys {
		values[idx] = s[key]
	}

	return values
}

// propertyOwner is the node or relationship a property chain hangs off.
type propertyOwner struct {
	recordType record.Type
	subject    fmt.Stringer
	firstProp  int64
}

// readProperties is the safe property chain reader. Defects are reported as they are found and never stop the
// read short of what can still be trusted: values from blocks read before a broken link are kept.
func (s *Context) readProperties(owner propertyOwner) (PropertyValues, error) {
	var (
		values     = PropertyValues{}
		reported   = map[int32]struct{}{}
		visited    = cardinality.NewIDSet()
		properties = s.Stores.Properties
		previous   record.Property
		nextID     = owner.firstProp
	)

	for first := true; nextID != record.NullReference; first = false {
		if visited.Contains(nextID) {
			s.reportf(owner.recordType, report.PropertyChainCycle, owner.subject, previous)
			break
		}

		visited.Add(nextID)

		property, err := loadForCheck(properties, nextID, s)
		if err != nil {
			return values, err
		}

		if property.Corrupt {
			break
		}

		if !property.InUse {
			if first {
				s.reportf(owner.recordType, report.PropertyNotInUse, owner.subject, property)
			} else {
				s.reportf(record.TypeProperty, report.NextNotInUse, previous, property)
			}

			break
		}

		if first {
			if property.PrevProp != record.NullReference {
				s.reportf(owner.recordType, report.PropertyNotFirstInChain, owner.subject, property)
			}
		} else if property.PrevProp != previous.ID {
			s.reportf(record.TypeProperty, report.NextDoesNotReferenceBack, previous, property)

			if err := s.checkPropertyPrev(property); err != nil {
				return values, err
			}
		}

		if s.reporting && s.Flags.CheckPropertyOwners && !s.propertyOwners.CheckedAdd(property.ID) {
			s.reportf(owner.recordType, report.MultiplePropertyOwners, owner.subject, property)
		}

		for _, block := range property.Blocks {
			value, ok, err := s.readPropertyBlock(property, block)
			if err != nil {
				return values, err
			}

			if _, duplicate := values[block.Key]; duplicate {
				if _, alreadyReported := reported[block.Key]; !alreadyReported {
					reported[block.Key] = struct{}{}
					s.reportf(owner.recordType, report.PropertyKeyNotUniqueInChain, owner.subject, property)
				}

				continue
			}

			if ok {
				values[block.Key] = value
			}
		}

		previous = property
		nextID = property.NextProp
	}

	return values, nil
}

// checkPropertyPrev follows the prev pointer of a record that its predecessor in the chain does not agree with.
func (s *Context) checkPropertyPrev(property record.Property) error {
	if property.PrevProp == record.NullReference {
		return nil
	}

	prev, err := loadForce(s.Stores.Properties, property.PrevProp)
	if err != nil {
		return err
	}

	if !prev.InUse {
		s.reportf(record.TypeProperty, report.PrevNotInUse, property, prev)
	} else if prev.NextProp != property.ID {
		s.reportf(record.TypeProperty, report.PreviousDoesNotReferenceBack, property, prev)
	}

	return nil
}

func (s *Context) readPropertyBlock(property record.Property, block record.PropertyBlock) (record.Value, bool, error) {
	switch s.Tokens.PropertyKeys.Use(int64(block.Key)) {
	case TokenIllegal:
		s.reportf(record.TypeProperty, report.InvalidPropertyKey, property, block)
	case TokenNotInUse:
		s.reportf(record.TypeProperty, report.KeyNotInUse, property, block)
	case TokenInternal:
		s.reportf(record.TypeProperty, report.PropertyKeyIsInternal, property, block)
	}

	switch {
	case !block.Type.IsValid():
		s.reportf(record.TypeProperty, report.InvalidPropertyType, property, block)
		return record.Value{}, false, nil

	case block.Type == record.PropertyTypeString:
		chain, err := followDynamicChain(s.Stores.Strings, s.Stores.Format.StringBlockSize, block.DynamicID(), chainOwner{
			recordType: record.TypeProperty,
			subject:    property,
			notInUse:   report.StringNotInUse,
		}, s)

		if err != nil {
			return record.Value{}, false, err
		}

		if chain.Blocks == 0 {
			return record.Value{}, false, nil
		}

		if chain.Complete && len(chain.Data) == 0 {
			s.reportf(record.TypeProperty, report.StringEmpty, property, block)
		}

		return record.String(string(chain.Data)), true, nil

	case block.Type == record.PropertyTypeArray:
		chain, err := followDynamicChain(s.Stores.Arrays, s.Stores.Format.ArrayBlockSize, block.DynamicID(), chainOwner{
			recordType: record.TypeProperty,
			subject:    property,
			notInUse:   report.ArrayNotInUse,
		}, s)

		if err != nil || !chain.Complete {
			return record.Value{}, false, err
		}

		if len(chain.Data) == 0 {
			s.reportf(record.TypeProperty, report.ArrayEmpty, property, block)
			return record.Value{}, false, nil
		}

		value, err := record.DecodeArray(chain.Data)
		if err != nil {
			s.reportf(record.TypeProperty, report.InvalidPropertyValue, property, block)
			return record.Value{}, false, nil
		}

		return value, true, nil

	default:
		value, ok := block.InlineValue()
		if !ok {
			s.reportf(record.TypeProperty, report.InvalidPropertyValue, property, block)
		}

		return value, ok, nil
	}
}
