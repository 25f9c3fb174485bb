package acl

// ScopeCheckerData carries lazily evaluated ownership predicates. Nil
// predicates evaluate to false.
type ScopeCheckerData struct {
	IsOwn     func() bool
	InTeam    func() bool
	InAccount func() bool
	InContact func() bool
	IsShared  func() bool
}

// Const returns a predicate with a fixed result.
func Const(v bool) func() bool {
	return func() bool { return v }
}

func eval(p func() bool) bool {
	return p != nil && p()
}

// ScopeChecker evaluates an action level against ownership predicates.
type ScopeChecker struct{}

// Check decides an action on scope data. Without an action it only reports
// whether the scope is accessible at all. Without checker data any level
// needing an ownership test is denied.
func (ScopeChecker) Check(data ScopeData, action Action, checkerData *ScopeCheckerData) bool {
	if data.IsFalse() {
		return false
	}
	if data.IsUnrestricted() {
		return true
	}
	if action == "" {
		return true
	}

	level := data.Get(action)
	switch {
	case level.IsUnrestricted():
		return true
	case !level.Grants():
		return false
	case checkerData == nil:
		return false
	}

	switch level {
	case LevelOwn:
		if eval(checkerData.IsOwn) {
			return true
		}
	case LevelTeam:
		if eval(checkerData.IsOwn) || eval(checkerData.InTeam) {
			return true
		}
	case LevelContact:
		if eval(checkerData.IsOwn) || eval(checkerData.InContact) {
			return true
		}
	case LevelAccount:
		if eval(checkerData.IsOwn) || eval(checkerData.InContact) || eval(checkerData.InAccount) {
			return true
		}
	}

	return eval(checkerData.IsShared)
}
