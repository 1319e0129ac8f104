package env

// GetString returns name as a string, returning (value, found).
func (e *Environment) GetString(name string) (string, bool) {
	v, _, ok := e.Lookup(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt returns name as an int, handling the sized integer kinds.
func (e *Environment) GetInt(name string) (int, bool) {
	v, _, ok := e.Lookup(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	default:
		return 0, false
	}
}

// GetFloat returns name as a float64, handling float32 and ints.
func (e *Environment) GetFloat(name string) (float64, bool) {
	v, _, ok := e.Lookup(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Value returns the raw value bound to name, local scope first.
func (e *Environment) Value(name string) any {
	v, _, _ := e.Lookup(name)
	return v
}
