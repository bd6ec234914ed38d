// Package strategy runs ordered lists of independent heuristics where the
// first one to produce a result wins.
package strategy

import "strconv"

// Func is one heuristic. ok is false when it has nothing to offer.
type Func[In, Out any] func(In) (out Out, ok bool)

// Named pairs a heuristic with a name for logging and tests
type Named[In, Out any] struct {
	Name string
	Run  Func[In, Out]
}

// List is an ordered cascade of heuristics
type List[In, Out any] []Named[In, Out]

// First returns the result of the first strategy that succeeds together with
// its name.
func (l List[In, Out]) First(in In) (Out, string, bool) {
	for _, s := range l {
		if out, ok := s.Run(in); ok {
			return out, s.Name, true
		}
	}
	var zero Out
	return zero, "", false
}

// Value is First without the strategy name
func (l List[In, Out]) Value(in In) (Out, bool) {
	out, _, ok := l.First(in)
	return out, ok
}

// Or returns the first successful value or fallback
func (l List[In, Out]) Or(in In, fallback Out) Out {
	if out, ok := l.Value(in); ok {
		return out
	}
	return fallback
}

// Of builds a List from anonymous funcs, naming them by position
func Of[In, Out any](fns ...Func[In, Out]) List[In, Out] {
	l := make(List[In, Out], 0, len(fns))
	for i, fn := range fns {
		l = append(l, Named[In, Out]{Name: "#" + strconv.Itoa(i), Run: fn})
	}
	return l
}
