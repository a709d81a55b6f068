// internal/interaction/predicate.go
package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Predicate is a named, re-evaluable check of UI state. It is evaluated fresh every
// time and must not cache results between calls.
type Predicate struct {
	Name  string
	Check func(ctx context.Context) (bool, error)
}

// NewPredicate builds a Predicate.
func NewPredicate(name string, check func(ctx context.Context) (bool, error)) Predicate {
	return Predicate{Name: name, Check: check}
}

// Ptr returns p as an optional predicate, for Interaction.AlreadySatisfied.
func (p Predicate) Ptr() *Predicate { return &p }

// IsZero reports whether the predicate has no check function.
func (p Predicate) IsZero() bool { return p.Check == nil }

// Evaluate runs the check once. Errors and panics inside the check are returned as
// *PredicateError so callers can tell verification bugs from UI conditions.
func (p Predicate) Evaluate(ctx context.Context) (ok bool, err error) {
	if p.Check == nil {
		return false, &PredicateError{Predicate: p.Name, Err: errors.New("predicate has no check function")}
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &PredicateError{Predicate: p.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	ok, err = p.Check(ctx)
	if err != nil {
		var pe *PredicateError
		if errors.As(err, &pe) {
			return false, err
		}
		return false, &PredicateError{Predicate: p.Name, Err: err}
	}
	return ok, nil
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return Predicate{
		Name: "not " + p.Name,
		Check: func(ctx context.Context) (bool, error) {
			ok, err := p.Evaluate(ctx)
			return !ok, err
		},
	}
}

// All is true when every predicate is true. Evaluation stops at the first false.
func All(name string, ps ...Predicate) Predicate {
	return Predicate{
		Name: joinName(name, " and ", ps),
		Check: func(ctx context.Context) (bool, error) {
			for _, p := range ps {
				ok, err := p.Evaluate(ctx)
				if err != nil || !ok {
					return false, err
				}
			}
			return true, nil
		},
	}
}

// Any is true when at least one predicate is true. Evaluation stops at the first true.
func Any(name string, ps ...Predicate) Predicate {
	return Predicate{
		Name: joinName(name, " or ", ps),
		Check: func(ctx context.Context) (bool, error) {
			for _, p := range ps {
				ok, err := p.Evaluate(ctx)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

func joinName(name, sep string, ps []Predicate) string {
	if name != "" {
		return name
	}
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		names = append(names, p.Name)
	}
	return "(" + strings.Join(names, sep) + ")"
}

// Visible is true while loc matches a visible element.
func Visible(d Driver, loc Locator) Predicate {
	return Predicate{
		Name: "visible " + loc.String(),
		Check: func(ctx context.Context) (bool, error) {
			ok, err := d.Visible(ctx, loc)
			if errors.Is(err, ErrNoMatch) || errors.Is(err, ErrInvalidLocator) {
				return false, nil
			}
			return ok, err
		},
	}
}

// Hidden is true while loc matches no visible element.
func Hidden(d Driver, loc Locator) Predicate {
	p := Not(Visible(d, loc))
	p.Name = "hidden " + loc.String()
	return p
}

// Script is true while expression evaluates to a truthy value in the document.
func Script(d Driver, name, expression string) Predicate {
	return Predicate{
		Name: name,
		Check: func(ctx context.Context) (bool, error) {
			v, err := d.Evaluate(ctx, expression)
			if err != nil {
				return false, err
			}
			return truthy(v), nil
		},
	}
}

// truthy mirrors JavaScript truthiness for JSON-decoded values.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
