package model

import (
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gcu/pkg/domain/types"
)

// Document is a schemaless record of Firestore or Datastore
type Document map[string]any

// Filter is a (field, operator, value) condition of a collection query. Operators follow Firestore, e.g. "==", "<", "in".
type Filter struct {
	Field string
	Op    string
	Value any
}

// Match evaluates equality filters against the document. Values are compared by their string form. Used by in-memory stores.
func (x Document) Match(filters []Filter) (bool, error) {
	for _, f := range filters {
		v, ok := x[f.Field]
		eq := ok && fmt.Sprint(v) == fmt.Sprint(f.Value)
		switch f.Op {
		case "==", "=":
			if !eq {
				return false, nil
			}
		case "!=":
			if eq {
				return false, nil
			}
		default:
			return false, goerr.Wrap(types.ErrInvalidOption, "unsupported filter operator", goerr.V("op", f.Op))
		}
	}
	return true, nil
}
